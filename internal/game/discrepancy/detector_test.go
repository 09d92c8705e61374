package discrepancy_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/chronicle/internal/game/discrepancy"
	"github.com/cory-johannsen/chronicle/internal/scripting"
)

func endedCombat(rewards any) map[string]any {
	cs := map[string]any{
		"in_combat":      false,
		"combat_phase":   "ended",
		"combat_summary": map[string]any{"xp_awarded": float64(50)},
	}
	if rewards != nil {
		cs["rewards_processed"] = rewards
	}
	return map[string]any{"combat_state": cs}
}

func newDetector(rules ...discrepancy.Rule) *discrepancy.Detector {
	if len(rules) == 0 {
		rules = discrepancy.DefaultRules()
	}
	return discrepancy.NewDetector(zap.NewNop(), rules...)
}

func TestRewardsState_EndedWithoutRewards(t *testing.T) {
	got := newDetector().Detect(endedCombat(nil))
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "REWARDS_STATE_ERROR"))
	assert.Equal(t,
		"REWARDS_STATE_ERROR: Combat ended (phase=ended) with summary, but rewards_processed=False. You MUST set combat_state.rewards_processed=true.",
		got[0])

	got = newDetector().Detect(endedCombat(false))
	require.Len(t, got, 1)
}

func TestRewardsState_VictoryPhase(t *testing.T) {
	s := endedCombat(nil)
	s["combat_state"].(map[string]any)["combat_phase"] = "victory"
	got := newDetector().Detect(s)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "phase=victory")
}

func TestRewardsState_ProcessedIsClean(t *testing.T) {
	assert.Empty(t, newDetector().Detect(endedCombat(true)))
}

func TestRewardsState_ActiveCombatExempt(t *testing.T) {
	s := map[string]any{"combat_state": map[string]any{
		"in_combat":         true,
		"combat_phase":      "ended",
		"combat_summary":    "a summary",
		"rewards_processed": false,
	}}
	assert.Empty(t, newDetector().Detect(s))
}

func TestRewardsState_EmptySummaryOrNonTerminalPhase(t *testing.T) {
	s := endedCombat(nil)
	s["combat_state"].(map[string]any)["combat_summary"] = map[string]any{}
	assert.Empty(t, newDetector().Detect(s))

	s = endedCombat(nil)
	s["combat_state"].(map[string]any)["combat_phase"] = "fleeing"
	assert.Empty(t, newDetector().Detect(s))
}

func TestTemporalRule(t *testing.T) {
	wt := func(hour int) map[string]any {
		return map[string]any{"world_data": map[string]any{"world_time": map[string]any{
			"year": 1, "month": 2, "day": 3, "hour": hour, "minute": 0, "second": 0, "microsecond": 0,
		}}}
	}
	d := newDetector(discrepancy.TemporalRule{})
	got := d.DetectTransition(discrepancy.Transition{Before: wt(10), After: wt(9)})
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "TEMPORAL_ERROR"))
	assert.Contains(t, got[0], "0001-02-03 10:00:00.000000")

	assert.Empty(t, d.DetectTransition(discrepancy.Transition{Before: wt(9), After: wt(9)}))
	assert.Empty(t, d.DetectTransition(discrepancy.Transition{Before: wt(9), After: wt(11)}))
	assert.Empty(t, d.Detect(wt(1)), "no prior state means no temporal check")
}

func TestEntityReferenceRule(t *testing.T) {
	s := map[string]any{
		"player_character_data": map[string]any{"name": "Elara", "entity_id": "pc_elara_001"},
		"npc_data":              map[string]any{"Orc": map[string]any{"name": "Orc"}},
		"world_data":            map[string]any{"present_entities": []any{"Elara", "Orc", "npc_ghost_001"}},
		"combat_state": map[string]any{
			"in_combat": true,
			"combatants": []any{
				map[string]any{"name": "Elara", "is_player": true, "hp": 10},
				map[string]any{"name": "Orc", "hp": 5},
				map[string]any{"name": "Troll", "hp": 30},
			},
		},
	}
	got := newDetector(discrepancy.EntityReferenceRule{}).Detect(s)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "npc_ghost_001")
	assert.Contains(t, got[1], "combatants [Troll]")
	for _, c := range got {
		assert.True(t, strings.HasPrefix(c, "ENTITY_REFERENCE_ERROR"))
	}

	s["combat_state"].(map[string]any)["in_combat"] = false
	s["world_data"] = map[string]any{"present_entities": []any{"Orc"}}
	assert.Empty(t, newDetector(discrepancy.EntityReferenceRule{}).Detect(s))
}

type fakeEvaluator struct {
	gotRuleset string
	out        []string
	err        error
}

func (f *fakeEvaluator) Evaluate(ruleset string, _ map[string]any) ([]string, error) {
	f.gotRuleset = ruleset
	return f.out, f.err
}

func TestScriptRule(t *testing.T) {
	fe := &fakeEvaluator{out: []string{"CUSTOM_ERROR: x"}}
	d := newDetector(discrepancy.ScriptRule{Evaluator: fe, Logger: zap.NewNop()})
	got := d.DetectTransition(discrepancy.Transition{CampaignID: "c9", After: map[string]any{}})
	assert.Equal(t, []string{"CUSTOM_ERROR: x"}, got)
	assert.Equal(t, "c9", fe.gotRuleset)

	core, logs := observer.New(zap.WarnLevel)
	fe = &fakeEvaluator{err: errors.New("lua exploded")}
	d = newDetector(discrepancy.ScriptRule{Evaluator: fe, Logger: zap.New(core)})
	assert.Empty(t, d.Detect(map[string]any{}))
	assert.Equal(t, 1, logs.Len())
}

func TestScriptRule_CampaignRulesetPreferred(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "global.lua"), []byte(`
		function check_state(s)
			if s.player_character_data.gold > 100 then
				return "GOLD_NOTE: rich"
			end
		end
	`), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "hardcore"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hardcore", "gold.lua"), []byte(`
		function check_state(s)
			if s.player_character_data.gold > 10 then
				return "GOLD_ERROR: hardcore cap is 10"
			end
		end
	`), 0644))

	mgr := scripting.NewManager(zap.NewNop())
	defer mgr.Close()
	_, err := mgr.LoadRulesDir(dir, 0)
	require.NoError(t, err)

	d := newDetector(discrepancy.ScriptRule{Evaluator: mgr, Logger: zap.NewNop()})
	after := map[string]any{"player_character_data": map[string]any{"gold": float64(50)}}
	assert.Equal(t, []string{"GOLD_ERROR: hardcore cap is 10"},
		d.DetectTransition(discrepancy.Transition{CampaignID: "hardcore", After: after}))
	assert.Empty(t, d.DetectTransition(discrepancy.Transition{CampaignID: "casual", After: after}))
}

func TestDetector_RulesComposeInOrder(t *testing.T) {
	first := discrepancy.RuleFunc{RuleName: "a", Fn: func(discrepancy.Transition) []string { return []string{"A"} }}
	second := discrepancy.RuleFunc{RuleName: "b", Fn: func(discrepancy.Transition) []string { return []string{"B1", "B2"} }}
	core, logs := observer.New(zap.InfoLevel)
	d := discrepancy.NewDetector(zap.New(core), first, second)
	assert.Equal(t, []string{"A", "B1", "B2"}, d.Detect(nil))
	assert.Equal(t, 2, logs.FilterMessage("discrepancy detected").Len())
}

func TestProperty_ActiveCombatNeverRaisesRewardsError(t *testing.T) {
	d := newDetector(discrepancy.RewardsStateRule{})
	rapid.Check(t, func(rt *rapid.T) {
		s := map[string]any{"combat_state": map[string]any{
			"in_combat":         true,
			"combat_phase":      rapid.SampledFrom([]string{"ended", "victory", "active", ""}).Draw(rt, "phase"),
			"combat_summary":    rapid.SampledFrom([]string{"", "won"}).Draw(rt, "summary"),
			"rewards_processed": rapid.Bool().Draw(rt, "rewards"),
		}}
		assert.Empty(rt, d.Detect(s))
	})
}

func TestDetect_DoesNotModifyState(t *testing.T) {
	s := endedCombat(nil)
	newDetector().Detect(s)
	assert.NotContains(t, s["combat_state"], "rewards_processed")
}
