package npc

import (
	"fmt"

	"github.com/cory-johannsen/chronicle/internal/game/entity"
)

// Record renders t as an npc_data record with the given entity ID.
//
// Postcondition: Returns a fresh map; hp starts at max_hp.
func (t *Template) Record(entityID string) map[string]any {
	rec := map[string]any{
		"entity_id":   entityID,
		"entity_type": string(entity.KindNPC),
		"name":        t.Name,
		"gender":      t.Gender,
		"level":       t.Level,
		"hp":          t.MaxHP,
		"hp_max":      t.MaxHP,
		"ac":          t.AC,
		"template_id": t.ID,
		"attributes": map[string]any{
			"strength":     abilityScore(t.Abilities.Strength),
			"dexterity":    abilityScore(t.Abilities.Dexterity),
			"constitution": abilityScore(t.Abilities.Constitution),
			"intelligence": abilityScore(t.Abilities.Intelligence),
			"wisdom":       abilityScore(t.Abilities.Wisdom),
			"charisma":     abilityScore(t.Abilities.Charisma),
		},
	}
	if t.Description != "" {
		rec["description"] = t.Description
	}
	if t.Type != "" {
		rec["type"] = t.Type
	}
	return rec
}

// abilityScore treats an omitted score as the average of 10.
func abilityScore(n int) int {
	if n == 0 {
		return 10
	}
	return n
}

// Preload returns a copy of npcData with a record added for every template marked
// Preload whose name is not already a key. Entity IDs continue the sequence of IDs
// already present.
//
// Postcondition: npcData is not modified; existing records are kept unchanged.
func Preload(templates []*Template, npcData map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(npcData)+len(templates))
	var ids []string
	for k, v := range npcData {
		out[k] = v
		if rec, ok := v.(map[string]any); ok {
			if id, ok := rec["entity_id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	for _, t := range templates {
		if !t.Preload {
			continue
		}
		if _, exists := out[t.Name]; exists {
			continue
		}
		seq := entity.NextSequence(ids, entity.KindNPC, t.Name)
		id, err := entity.NewID(entity.KindNPC, t.Name, seq)
		if err != nil {
			return nil, fmt.Errorf("preloading npc template %q: %w", t.ID, err)
		}
		ids = append(ids, id)
		out[t.Name] = t.Record(id)
	}
	return out, nil
}
