package entity

import (
	"sort"
	"strings"
)

// Scene listing keys that must reference known entities.
var sceneReferenceKeys = []string{"present_entities", "participants"}

// Registry is the set of identifiers that count as known entities in a scene.
type Registry map[string]struct{}

// Has reports whether ref is known.
func (r Registry) Has(ref string) bool {
	_, ok := r[ref]
	return ok
}

// KnownEntities collects the identifiers of the player character and every NPC.
//
// An NPC is known by its npc_data key, its entity_id, and its name; the player
// character by its entity_id and name.
func KnownEntities(state map[string]any) Registry {
	known := Registry{}
	add := func(rec map[string]any) {
		for _, k := range []string{"entity_id", "name"} {
			if s, ok := rec[k].(string); ok && s != "" {
				known[s] = struct{}{}
			}
		}
	}
	if pc, ok := state["player_character_data"].(map[string]any); ok {
		add(pc)
	}
	if npcs, ok := state["npc_data"].(map[string]any); ok {
		for key, v := range npcs {
			known[key] = struct{}{}
			if rec, ok := v.(map[string]any); ok {
				add(rec)
			}
		}
	}
	return known
}

// DanglingReferences returns the scene references that known does not contain,
// sorted and de-duplicated. Entries may be ID strings or records carrying entity_id
// or name.
func DanglingReferences(scene map[string]any, known Registry) []string {
	seen := map[string]struct{}{}
	var dangling []string
	for _, key := range sceneReferenceKeys {
		list, ok := scene[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			ref := referenceOf(item)
			if ref == "" || known.Has(ref) {
				continue
			}
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			dangling = append(dangling, ref)
		}
	}
	sort.Strings(dangling)
	return dangling
}

func referenceOf(item any) string {
	switch tv := item.(type) {
	case string:
		return strings.TrimSpace(tv)
	case map[string]any:
		if id, ok := tv["entity_id"].(string); ok && id != "" {
			return id
		}
		name, _ := tv["name"].(string)
		return name
	default:
		return ""
	}
}
