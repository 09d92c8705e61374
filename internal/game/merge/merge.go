// Package merge folds untrusted, partial state proposals into canonical game state.
//
// Every operation in this package is pure: inputs are never modified and results
// share no mutable structure with them.
package merge

// Merge returns current with proposed folded in.
//
// For each key of proposed, when both sides hold a map the merge recurses;
// otherwise the proposed value replaces the current one wholesale. Lists are
// replaced, never concatenated.
//
// Postcondition: current and proposed are unmodified. The bool is false when
// proposed is empty, in which case current is returned as-is.
func Merge(current, proposed map[string]any) (map[string]any, bool) {
	if len(proposed) == 0 {
		return current, false
	}
	out := copyMap(current)
	mergeInto(out, proposed)
	return out, true
}

// mergeInto folds src into dst. dst must be owned by the caller.
func mergeInto(dst, src map[string]any) {
	for k, sv := range src {
		srcMap, srcIsMap := sv.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			// dst came from copyMap, so its nested maps are already private.
			mergeInto(dstMap, srcMap)
			continue
		}
		dst[k] = DeepCopy(sv)
	}
}

// DeepCopy returns a copy of v with every nested map[string]any and []any duplicated.
// Other values are returned as-is; JSON-decoded state contains only immutable scalars
// beneath those two container types.
func DeepCopy(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return copyMap(tv)
	case []any:
		if tv == nil {
			return []any(nil)
		}
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

// DeepCopyMap is DeepCopy specialised to maps.
func DeepCopyMap(m map[string]any) map[string]any {
	return copyMap(m)
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}
