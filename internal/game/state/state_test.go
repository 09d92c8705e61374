package state_test

import (
	"testing"
	"time"

	"github.com/cory-johannsen/chronicle/internal/game/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNew_Defaults(t *testing.T) {
	s := state.New(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	for _, key := range []string{
		state.KeyPlayerCharacter, state.KeyNPCData, state.KeyWorldData,
		state.KeyCombatState, state.KeyCustomState,
	} {
		assert.NotNil(t, state.Section(s, key), key)
	}
	assert.False(t, state.DebugMode(s))
	assert.Equal(t, "mortal", state.Section(s, state.KeyCustomState)["tier"])
	assert.False(t, state.CombatStateOf(s).InCombat)
	assert.Equal(t, "2026-01-02T03:04:05Z", s[state.KeyLastUpdatedAt])

	wt, ok := state.WorldTimeOf(s)
	require.True(t, ok)
	assert.Equal(t, state.WorldTime{Year: 1, Month: 1, Day: 1}, wt)
}

func TestParseMode(t *testing.T) {
	m, ok := state.ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, state.ModeCharacter, m)
	m, ok = state.ParseMode("think")
	assert.True(t, ok)
	assert.Equal(t, state.ModeThink, m)
	_, ok = state.ParseMode("dream")
	assert.False(t, ok)
}

func TestTruthy(t *testing.T) {
	assert.True(t, state.Truthy(true))
	assert.True(t, state.Truthy(float64(1)))
	assert.True(t, state.Truthy("yes"))
	assert.False(t, state.Truthy("False"))
	assert.False(t, state.Truthy(nil))
	assert.False(t, state.Truthy(0))
}

func TestCombatStateOf_ListShape(t *testing.T) {
	s := map[string]any{
		"combat_state": map[string]any{
			"in_combat":      true,
			"combat_phase":   "active",
			"combat_summary": map[string]any{},
			"combatants": []any{
				map[string]any{"name": "Goblin", "hp": float64(0), "type": "enemy"},
				map[string]any{"name": "Elara", "hp_current": "12", "is_player": true},
				"not a record",
				map[string]any{"name": "Shade", "hp": "unknown"},
			},
		},
	}
	cs := state.CombatStateOf(s)
	assert.True(t, cs.InCombat)
	assert.Equal(t, "active", cs.Phase)
	assert.False(t, cs.HasSummary())
	require.Len(t, cs.Combatants, 3)

	assert.Equal(t, "Goblin", cs.Combatants[0].Ref())
	assert.True(t, cs.Combatants[0].Defeated())
	assert.Equal(t, 0, cs.Combatants[0].Index)

	assert.True(t, cs.Combatants[1].IsPlayer)
	assert.Equal(t, 12, cs.Combatants[1].HP)
	assert.Equal(t, 1, cs.Combatants[1].Index)

	assert.False(t, cs.Combatants[2].HasHP)
	assert.False(t, cs.Combatants[2].Defeated())
	assert.Equal(t, 3, cs.Combatants[2].Index)
}

func TestCombatStateOf_MapShape(t *testing.T) {
	s := map[string]any{
		"combat_state": map[string]any{
			"combatants": map[string]any{
				"Orc":  map[string]any{"hp": 5, "entity_type": "hostile"},
				"Wolf": map[string]any{"hp": -2, "entity_id": "npc_wolf_001"},
			},
		},
	}
	cs := state.CombatStateOf(s)
	require.True(t, cs.MapShape)
	require.Len(t, cs.Combatants, 2)
	assert.Equal(t, "Orc", cs.Combatants[0].Key)
	assert.Equal(t, "Orc", cs.Combatants[0].Name)
	assert.Equal(t, "hostile", cs.Combatants[0].Type)
	assert.Equal(t, "npc_wolf_001", cs.Combatants[1].Ref())
	assert.True(t, cs.Combatants[1].Defeated())
}

func TestCombatStateOf_Missing(t *testing.T) {
	assert.Equal(t, state.CombatState{}, state.CombatStateOf(map[string]any{}))
}

func TestWorldTime_TickCarries(t *testing.T) {
	wt := state.WorldTime{Year: 3, Month: 12, Day: 30, Hour: 23, Minute: 59, Second: 59, Microsecond: 999_999}
	assert.Equal(t, state.WorldTime{Year: 4, Month: 1, Day: 1}, wt.TickMicrosecond())

	wt = state.WorldTime{Year: 1, Month: 1, Day: 1, Microsecond: 5}
	assert.Equal(t, 6, wt.TickMicrosecond().Microsecond)
}

func TestWorldTimeOf_Missing(t *testing.T) {
	_, ok := state.WorldTimeOf(map[string]any{"world_data": map[string]any{}})
	assert.False(t, ok)
}

func TestProperty_TickIsStrictlyIncreasing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		wt := state.WorldTime{
			Year:        rapid.IntRange(1, 5000).Draw(rt, "year"),
			Month:       rapid.IntRange(1, 12).Draw(rt, "month"),
			Day:         rapid.IntRange(1, 30).Draw(rt, "day"),
			Hour:        rapid.IntRange(0, 23).Draw(rt, "hour"),
			Minute:      rapid.IntRange(0, 59).Draw(rt, "minute"),
			Second:      rapid.IntRange(0, 59).Draw(rt, "second"),
			Microsecond: rapid.IntRange(0, 999_999).Draw(rt, "us"),
		}
		assert.Equal(rt, 1, wt.TickMicrosecond().Compare(wt))
		assert.Equal(rt, -1, wt.Compare(wt.TickMicrosecond()))
		assert.Equal(rt, 0, wt.Compare(wt))
	})
}
