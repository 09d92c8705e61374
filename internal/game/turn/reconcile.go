package turn

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/cory-johannsen/chronicle/internal/errors"
	"github.com/cory-johannsen/chronicle/internal/game/discrepancy"
	"github.com/cory-johannsen/chronicle/internal/game/entity"
	"github.com/cory-johannsen/chronicle/internal/game/merge"
	"github.com/cory-johannsen/chronicle/internal/game/state"
)

// PrefixEntitySchema marks corrections for entity records dropped from a proposal.
const PrefixEntitySchema = "ENTITY_SCHEMA_ERROR"

// coercedSections are the proposal sections whose numeric fields are coerced
// before merge. combat_state is left raw so a combatant at 0 HP stays defeated.
var coercedSections = []string{
	state.KeyPlayerCharacter,
	state.KeyNPCData,
	state.KeyCustomState,
}

// reconciliation is the outcome of folding one narrator proposal into state.
type reconciliation struct {
	State map[string]any
	// Applied is the sanitized delta that was merged, nil in think mode.
	Applied     map[string]any
	Removed     []string
	Corrections []string
}

// reconcile merges proposal into before, removes defeated enemies, and collects
// corrections for the next turn.
//
// Precondition: mode is ModeCharacter or ModeThink.
// Postcondition: before and proposal are not modified.
func (s *Service) reconcile(campaignID string, before, proposal map[string]any, mode state.Mode, seq int, now time.Time, log *zap.Logger) reconciliation {
	var (
		next       map[string]any
		applied    map[string]any
		rejections []string
	)
	if mode == state.ModeThink {
		if len(proposal) > 0 {
			log.Debug("discarding state updates proposed in think mode", zap.Int("keys", len(proposal)))
		}
		next = freezeWorld(before)
	} else {
		applied, rejections = s.sanitize(before, proposal, log)
		next, _ = merge.Merge(before, applied)
		next, _ = merge.Merge(next, map[string]any{
			state.KeyCustomState:   map[string]any{state.KeyLastStorySeqID: seq},
			state.KeyLastUpdatedAt: now.UTC().Format(time.RFC3339Nano),
		})
	}

	cleaned := s.cleaner.Cleanup(next, applied, mode)
	corrections := append(rejections, s.detector.DetectTransition(discrepancy.Transition{
		CampaignID: campaignID,
		Before:     before,
		After:      cleaned.State,
	})...)

	return reconciliation{
		State:       cleaned.State,
		Applied:     applied,
		Removed:     cleaned.Removed,
		Corrections: corrections,
	}
}

// freezeWorld returns a copy of s whose only change is a one-microsecond world
// clock tick. A state without a world clock is copied unchanged.
func freezeWorld(s map[string]any) map[string]any {
	out := merge.DeepCopyMap(s)
	wt, ok := state.WorldTimeOf(out)
	if !ok {
		return out
	}
	state.Section(out, state.KeyWorldData)[state.KeyWorldTime] = wt.TickMicrosecond().ToMap()
	return out
}

// sanitize coerces the numeric fields of a proposal and validates every entity
// record it touches against the record it would produce after merge: the player
// character, each NPC, and each world_data location. Records without an
// entity_id are assigned one. Invalid records are removed from the delta and
// reported as corrections.
//
// Postcondition: proposal is not modified. Returns a nil delta for an empty proposal.
func (s *Service) sanitize(before, proposal map[string]any, log *zap.Logger) (map[string]any, []string) {
	if len(proposal) == 0 {
		return nil, nil
	}
	out := merge.DeepCopyMap(proposal)
	for _, key := range coercedSections {
		if section, ok := out[key].(map[string]any); ok {
			out[key] = s.converter.ConvertDict(section)
		}
	}

	var corrections []string
	if msg, ok := s.sanitizePlayer(before, out, log); !ok {
		corrections = append(corrections, msg)
	}
	if npcs, ok := out[state.KeyNPCData].(map[string]any); ok {
		corrections = append(corrections, s.sanitizeRecords(
			state.KeyNPCData, npcs, state.Section(before, state.KeyNPCData), entity.KindNPC, log)...)
	}
	if world, ok := out[state.KeyWorldData].(map[string]any); ok {
		if locs, ok := world[state.KeyLocations].(map[string]any); ok {
			prior, _ := state.Section(before, state.KeyWorldData)[state.KeyLocations].(map[string]any)
			corrections = append(corrections, s.sanitizeRecords(
				state.KeyWorldData+"."+state.KeyLocations, locs, prior, entity.KindLocation, log)...)
		}
	}
	return out, corrections
}

// sanitizePlayer validates the player character patch in out. A player record
// with a name but no entity_id is given one; an anonymous record only has its
// health reconciled.
func (s *Service) sanitizePlayer(before, out map[string]any, log *zap.Logger) (string, bool) {
	patch, ok := out[state.KeyPlayerCharacter].(map[string]any)
	if !ok {
		return "", true
	}
	view, _ := merge.Merge(merge.DeepCopyMap(state.Section(before, state.KeyPlayerCharacter)), patch)

	var (
		record map[string]any
		err    error
	)
	id, _ := view["entity_id"].(string)
	name, _ := view["name"].(string)
	switch {
	case id == "" && name == "":
		record, err = s.validator.ClampHealth(view)
	default:
		if id == "" {
			if id, err = entity.NewID(entity.KindPC, name, 1); err == nil {
				view["entity_id"] = id
			}
		}
		if err == nil {
			var c entity.Character
			if c, err = s.validator.ValidateCharacter(view); err == nil {
				record = c.Record
			}
		}
	}
	if err != nil {
		delete(out, state.KeyPlayerCharacter)
		return rejected(state.KeyPlayerCharacter, err, log), false
	}
	out[state.KeyPlayerCharacter] = record
	return "", true
}

// sanitizeRecords validates each record of a keyed section patch in place.
// section is the dotted path used in corrections; kind selects the validator
// and the ID prefix.
func (s *Service) sanitizeRecords(section string, patches, existing map[string]any, kind entity.Kind, log *zap.Logger) []string {
	ids := entityIDs(existing)
	var corrections []string
	for _, key := range sortedKeys(patches) {
		patch, ok := patches[key].(map[string]any)
		if !ok {
			continue
		}
		prior, _ := existing[key].(map[string]any)
		view, _ := merge.Merge(merge.DeepCopyMap(prior), patch)
		if name, _ := view["name"].(string); name == "" {
			view["name"] = key
		}
		if id, _ := view["entity_id"].(string); id == "" {
			name := view["name"].(string)
			if id, err := entity.NewID(kind, name, entity.NextSequence(ids, kind, name)); err == nil {
				view["entity_id"] = id
				ids = append(ids, id)
			}
		}

		var (
			record map[string]any
			err    error
		)
		if kind == entity.KindLocation {
			var loc entity.Location
			if loc, err = s.validator.ValidateLocation(view); err == nil {
				record = loc.Record
			}
		} else {
			var c entity.Character
			if c, err = s.validator.ValidateCharacter(view); err == nil {
				record = c.Record
			}
		}
		if err != nil {
			delete(patches, key)
			corrections = append(corrections, rejected(section+"."+key, err, log))
			continue
		}
		patches[key] = record
	}
	return corrections
}

// rejected logs a dropped record and returns its correction text.
func rejected(path string, err error, log *zap.Logger) string {
	log.Warn("dropping invalid entity record from state updates",
		zap.String("path", path),
		zap.Error(err),
	)
	return fmt.Sprintf(
		"%s: %s was rejected (%s). Resend the complete record with the field corrected.",
		PrefixEntitySchema, path, apperrors.Message(err),
	)
}

func entityIDs(records map[string]any) []string {
	var ids []string
	for _, v := range records {
		if rec, ok := v.(map[string]any); ok {
			if id, ok := rec["entity_id"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
