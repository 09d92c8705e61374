package discrepancy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/chronicle/internal/game/entity"
	"github.com/cory-johannsen/chronicle/internal/game/state"
)

// Correction prefixes.
const (
	PrefixRewardsState    = "REWARDS_STATE_ERROR"
	PrefixTemporal        = "TEMPORAL_ERROR"
	PrefixEntityReference = "ENTITY_REFERENCE_ERROR"
)

// terminalPhases are combat phases after which rewards must be processed.
var terminalPhases = map[string]struct{}{
	"ended":   {},
	"victory": {},
}

// RewardsStateRule fires when combat has ended with a summary but rewards were
// never marked processed. Active combat is always exempt.
type RewardsStateRule struct{}

// Name returns the rule name.
func (RewardsStateRule) Name() string { return "rewards_state" }

// Check implements Rule.
func (RewardsStateRule) Check(t Transition) []string {
	cs := state.CombatStateOf(t.After)
	if cs.InCombat || cs.RewardsProcessed || !cs.HasSummary() {
		return nil
	}
	if _, ok := terminalPhases[cs.Phase]; !ok {
		return nil
	}
	return []string{fmt.Sprintf(
		"%s: Combat ended (phase=%s) with summary, but rewards_processed=False. You MUST set combat_state.rewards_processed=true.",
		PrefixRewardsState, cs.Phase,
	)}
}

// TemporalRule fires when the world clock moved backwards across the turn.
type TemporalRule struct{}

// Name returns the rule name.
func (TemporalRule) Name() string { return "temporal_monotonicity" }

// Check implements Rule.
func (TemporalRule) Check(t Transition) []string {
	if t.Before == nil {
		return nil
	}
	before, ok := state.WorldTimeOf(t.Before)
	if !ok {
		return nil
	}
	after, ok := state.WorldTimeOf(t.After)
	if !ok || after.Compare(before) >= 0 {
		return nil
	}
	return []string{fmt.Sprintf(
		"%s: world_time moved backwards from %s to %s. world_data.world_time must never decrease; restore it to at least %s.",
		PrefixTemporal, formatTime(before), formatTime(after), formatTime(before),
	)}
}

func formatTime(w state.WorldTime) string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d",
		w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second, w.Microsecond)
}

// EntityReferenceRule fires when the scene lists, or combat includes, entities that
// exist in neither player_character_data nor npc_data.
type EntityReferenceRule struct{}

// Name returns the rule name.
func (EntityReferenceRule) Name() string { return "entity_reference" }

// Check implements Rule.
func (EntityReferenceRule) Check(t Transition) []string {
	known := entity.KnownEntities(t.After)
	var out []string

	if scene := state.Section(t.After, state.KeyWorldData); scene != nil {
		if dangling := entity.DanglingReferences(scene, known); len(dangling) > 0 {
			out = append(out, fmt.Sprintf(
				"%s: world_data lists unknown entities [%s]. Add them to npc_data or remove them from the scene.",
				PrefixEntityReference, strings.Join(dangling, ", "),
			))
		}
	}

	cs := state.CombatStateOf(t.After)
	if !cs.InCombat {
		return out
	}
	var missing []string
	for _, c := range cs.Combatants {
		if c.IsPlayer {
			continue
		}
		if known.Has(c.Name) || known.Has(c.EntityID) || known.Has(c.Key) {
			continue
		}
		missing = append(missing, c.Ref())
	}
	if len(missing) > 0 {
		out = append(out, fmt.Sprintf(
			"%s: combatants [%s] have no npc_data record. Create an npc_data entry for each combatant.",
			PrefixEntityReference, strings.Join(missing, ", "),
		))
	}
	return out
}

// ScriptEvaluator runs operator-authored rules over a state document.
type ScriptEvaluator interface {
	Evaluate(ruleset string, s map[string]any) ([]string, error)
}

// ScriptRule delegates to scripted rules. The campaign ID selects the ruleset.
type ScriptRule struct {
	Evaluator ScriptEvaluator
	Logger    *zap.Logger
}

// Name returns the rule name.
func (ScriptRule) Name() string { return "script" }

// Check implements Rule. Evaluation errors are logged and yield no corrections.
func (r ScriptRule) Check(t Transition) []string {
	out, err := r.Evaluator.Evaluate(t.CampaignID, t.After)
	if err != nil {
		r.Logger.Warn("scripted discrepancy rules failed",
			zap.String("campaign_id", t.CampaignID),
			zap.Error(err),
		)
		return nil
	}
	return out
}
