package combat

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/chronicle/internal/game/merge"
	"github.com/cory-johannsen/chronicle/internal/game/state"
)

// Result is the outcome of one cleanup pass.
type Result struct {
	// State is the cleaned state, or the input state when nothing was removed.
	State map[string]any
	// Removed lists the identifiers of removed combatants in combatant order.
	Removed []string
	// Skipped is true when the pass did not run because the turn was in think mode.
	Skipped bool
}

// Cleaner removes defeated non-friendly combatants after every merge.
// A Cleaner is safe for concurrent use.
type Cleaner struct {
	logger *zap.Logger
}

// NewCleaner creates a Cleaner.
//
// Precondition: logger must be non-nil.
func NewCleaner(logger *zap.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Cleanup removes every combatant whose HP is at or below zero and whose
// disposition is not Friendly, together with its npc_data record, and records the
// removed names in combat_state.defeated_enemies.
//
// It inspects the merged state, not the proposal, so defeated enemies left over
// from earlier turns are removed even when proposed does not touch combat_state.
// In think mode the pass is skipped entirely.
//
// Postcondition: updated and proposed are not modified. Friendly combatants are
// never removed regardless of HP.
func (c *Cleaner) Cleanup(updated, proposed map[string]any, mode state.Mode) Result {
	if mode == state.ModeThink {
		return Result{State: updated, Skipped: true}
	}
	cs := state.CombatStateOf(updated)
	if len(cs.Combatants) == 0 {
		return Result{State: updated}
	}

	npcs := state.Section(updated, state.KeyNPCData)
	pcName, _ := state.Section(updated, state.KeyPlayerCharacter)["name"].(string)

	var victims []state.Combatant
	for _, cbt := range cs.Combatants {
		if !cbt.Defeated() {
			continue
		}
		legacyType := cbt.Type
		if legacyType == "" {
			if _, rec, ok := findNPC(npcs, cbt); ok {
				legacyType, _ = rec["type"].(string)
			}
		}
		isPlayer := cbt.IsPlayer || (pcName != "" && cbt.Name == pcName)
		if ClassifyDisposition(legacyType, isPlayer) == Friendly {
			continue
		}
		victims = append(victims, cbt)
	}
	if len(victims) == 0 {
		return Result{State: updated}
	}

	out := merge.DeepCopyMap(updated)
	combatSection := state.Section(out, state.KeyCombatState)
	removeCombatants(combatSection, cs.MapShape, victims)

	outNPCs := state.Section(out, state.KeyNPCData)
	defeated, _ := combatSection[state.KeyDefeatedEnemies].([]any)
	removed := make([]string, 0, len(victims))
	for _, v := range victims {
		if key, _, ok := findNPC(outNPCs, v); ok {
			delete(outNPCs, key)
		}
		removed = append(removed, v.Ref())
		name := v.Name
		if name == "" {
			name = v.Ref()
		}
		defeated = appendUnique(defeated, name)
	}
	combatSection[state.KeyDefeatedEnemies] = defeated

	_, touched := proposed[state.KeyCombatState]
	c.logger.Info("removed defeated combatants",
		zap.Strings("removed", removed),
		zap.Bool("combat_in_delta", touched),
	)
	return Result{State: out, Removed: removed}
}

func removeCombatants(section map[string]any, mapShape bool, victims []state.Combatant) {
	if mapShape {
		combatants := section[state.KeyCombatants].(map[string]any)
		for _, v := range victims {
			delete(combatants, v.Key)
		}
		return
	}
	drop := make(map[int]struct{}, len(victims))
	for _, v := range victims {
		drop[v.Index] = struct{}{}
	}
	list := section[state.KeyCombatants].([]any)
	kept := make([]any, 0, len(list)-len(victims))
	for i, item := range list {
		if _, ok := drop[i]; ok {
			continue
		}
		kept = append(kept, item)
	}
	section[state.KeyCombatants] = kept
}

// findNPC locates the npc_data record for cbt by key, name, or entity_id.
func findNPC(npcs map[string]any, cbt state.Combatant) (string, map[string]any, bool) {
	for _, ref := range []string{cbt.Key, cbt.EntityID, cbt.Name} {
		if ref == "" {
			continue
		}
		if rec, ok := npcs[ref].(map[string]any); ok {
			return ref, rec, true
		}
	}
	for key, v := range npcs {
		rec, ok := v.(map[string]any)
		if !ok {
			continue
		}
		id, _ := rec["entity_id"].(string)
		name, _ := rec["name"].(string)
		if (cbt.EntityID != "" && id == cbt.EntityID) || (cbt.Name != "" && name == cbt.Name) {
			return key, rec, true
		}
	}
	return "", nil, false
}

func appendUnique(list []any, name string) []any {
	if name == "" {
		return list
	}
	for _, v := range list {
		if v == name {
			return list
		}
	}
	return append(list, name)
}
