package state

import (
	"sort"
	"strings"

	"github.com/cory-johannsen/chronicle/internal/game/numeric"
)

// hpKeys lists the names under which a combatant's current HP may be stored,
// in lookup order.
var hpKeys = []string{"hp", "hp_current", "current_hp"}

// Combatant is a read-only view of one combat_state.combatants entry.
type Combatant struct {
	// Key is the map key for the legacy map shape, empty for the list shape.
	Key      string
	Name     string
	EntityID string
	// Type is the legacy free-text type string ("enemy", "ally", ...).
	Type     string
	IsPlayer bool
	HP       int
	// HasHP is false when no HP field was present or parseable.
	HasHP bool
	// Index is the position in the list shape, -1 for the map shape.
	Index int
}

// Ref returns the best identifier for c: entity_id, then name, then map key.
func (c Combatant) Ref() string {
	switch {
	case c.EntityID != "":
		return c.EntityID
	case c.Name != "":
		return c.Name
	default:
		return c.Key
	}
}

// Defeated reports whether c has a known HP at or below zero.
func (c Combatant) Defeated() bool {
	return c.HasHP && c.HP <= 0
}

// CombatState is a read-only view of the combat_state section.
type CombatState struct {
	InCombat         bool
	Phase            string
	RewardsProcessed bool
	Summary          any
	Combatants       []Combatant
	// MapShape is true when combatants were stored as a map keyed by name.
	MapShape bool
}

// HasSummary reports whether combat_summary is present and non-empty.
func (c CombatState) HasSummary() bool {
	switch tv := c.Summary.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(tv) != ""
	case map[string]any:
		return len(tv) > 0
	case []any:
		return len(tv) > 0
	default:
		return true
	}
}

// CombatStateOf builds a CombatState view of s.
//
// Postcondition: s is not modified. Missing or malformed fields read as zero values.
func CombatStateOf(s map[string]any) CombatState {
	cs := Section(s, KeyCombatState)
	if cs == nil {
		return CombatState{}
	}
	out := CombatState{
		InCombat:         Truthy(cs[KeyInCombat]),
		RewardsProcessed: Truthy(cs[KeyRewardsProcessed]),
		Summary:          cs[KeyCombatSummary],
	}
	out.Phase, _ = cs[KeyCombatPhase].(string)

	switch tv := cs[KeyCombatants].(type) {
	case []any:
		for i, item := range tv {
			rec, ok := item.(map[string]any)
			if !ok {
				continue
			}
			c := combatantOf(rec)
			c.Index = i
			out.Combatants = append(out.Combatants, c)
		}
	case map[string]any:
		out.MapShape = true
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rec, ok := tv[k].(map[string]any)
			if !ok {
				continue
			}
			c := combatantOf(rec)
			c.Key = k
			c.Index = -1
			if c.Name == "" {
				c.Name = k
			}
			out.Combatants = append(out.Combatants, c)
		}
	}
	return out
}

func combatantOf(rec map[string]any) Combatant {
	c := Combatant{Index: -1}
	c.Name, _ = rec["name"].(string)
	c.EntityID, _ = rec["entity_id"].(string)
	c.Type, _ = rec["type"].(string)
	if c.Type == "" {
		c.Type, _ = rec["entity_type"].(string)
	}
	c.IsPlayer = Truthy(rec["is_player"])
	for _, key := range hpKeys {
		v, present := rec[key]
		if !present {
			continue
		}
		if n, ok := numeric.ToInt(v); ok {
			c.HP = n
			c.HasHP = true
			break
		}
	}
	return c
}
