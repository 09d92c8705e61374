package merge

import (
	"fmt"
	"strings"
)

// Path is an explicit sequence of map keys descended from the state root.
type Path []string

// String renders p in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// ParsePath splits a dotted key path such as "combat_state.combatants" into its keys.
//
// Precondition: s is non-empty.
// Postcondition: Returns a Path with no empty segments, or an error.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("merge: empty path")
	}
	parts := strings.Split(s, ".")
	path := make(Path, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("merge: empty segment %d in path %q", i, s)
		}
		path = append(path, part)
	}
	return path, nil
}

// Lookup descends path through m.
//
// Postcondition: Returns (value, true) when every key along path exists and every
// intermediate value is a map; (nil, false) otherwise.
func Lookup(m map[string]any, path Path) (any, bool) {
	var cur any = m
	for _, key := range path {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// set writes value at path inside m, replacing any non-map intermediates with maps.
// m must be owned by the caller.
func set(m map[string]any, path Path, value any) {
	node := descend(m, path[:len(path)-1])
	node[path[len(path)-1]] = value
}

// descend returns the map at keys, creating empty maps where a key is missing or
// holds a non-map value.
func descend(m map[string]any, keys Path) map[string]any {
	node := m
	for _, key := range keys {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[key] = next
		}
		node = next
	}
	return node
}
