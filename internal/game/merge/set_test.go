package merge_test

import (
	"testing"

	"github.com/cory-johannsen/chronicle/internal/game/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParsePath(t *testing.T) {
	p, err := merge.ParsePath("combat_state.combatants")
	require.NoError(t, err)
	assert.Equal(t, merge.Path{"combat_state", "combatants"}, p)
	assert.Equal(t, "combat_state.combatants", p.String())

	_, err = merge.ParsePath("")
	assert.Error(t, err)
	_, err = merge.ParsePath("a..b")
	assert.Error(t, err)
	_, err = merge.ParsePath(".a")
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	m := map[string]any{"a": map[string]any{"b": 3, "s": "x"}}
	v, ok := merge.Lookup(m, merge.Path{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = merge.Lookup(m, merge.Path{"a", "s", "deeper"})
	assert.False(t, ok)
	_, ok = merge.Lookup(m, merge.Path{"missing"})
	assert.False(t, ok)
}

func TestParseSetCommand_SkipsBadLines(t *testing.T) {
	text := `player_character_data.hp = 20
world_data.location = "Old Mill"
broken line without equals
npc_data.Goblin.hp = not-json
combat_state.combatants.append = {"name": "Orc", "hp": 7}

`
	instrs, errs := merge.ParseSetCommand(text)
	require.Len(t, instrs, 3)
	require.Len(t, errs, 2)

	assert.Equal(t, merge.Path{"player_character_data", "hp"}, instrs[0].Path)
	assert.Equal(t, float64(20), instrs[0].Value)
	assert.Equal(t, 1, instrs[0].Line)
	assert.Equal(t, "Old Mill", instrs[1].Value)
	assert.True(t, instrs[2].Append)
	assert.Equal(t, merge.Path{"combat_state", "combatants"}, instrs[2].Path)

	assert.Equal(t, 3, errs[0].Line)
	assert.Equal(t, 4, errs[1].Line)
	assert.Contains(t, errs[1].Error(), "invalid JSON")
}

func TestParseSetCommand_BareAppendIsAssignment(t *testing.T) {
	instrs, errs := merge.ParseSetCommand(`append = 1`)
	require.Empty(t, errs)
	require.Len(t, instrs, 1)
	assert.False(t, instrs[0].Append)
	assert.Equal(t, merge.Path{"append"}, instrs[0].Path)
}

func TestApplyInstructions_AppendAccumulates(t *testing.T) {
	instrs, errs := merge.ParseSetCommand("log.append = 1\nlog.append = 2")
	require.Empty(t, errs)
	out, changed := merge.ApplyInstructions(map[string]any{}, instrs)
	require.True(t, changed)
	assert.Equal(t, []any{float64(1), float64(2)}, out["log"])
}

func TestApplyInstructions_AppendConvertsScalar(t *testing.T) {
	state := map[string]any{"custom_campaign_state": map[string]any{"flags": "met_king"}}
	instrs, _ := merge.ParseSetCommand(`custom_campaign_state.flags.append = "slew_dragon"`)
	out, _ := merge.ApplyInstructions(state, instrs)
	assert.Equal(t, []any{"met_king", "slew_dragon"},
		out["custom_campaign_state"].(map[string]any)["flags"])
	assert.Equal(t, "met_king", state["custom_campaign_state"].(map[string]any)["flags"],
		"input state must be unmodified")
}

func TestApplyInstructions_AppendExtendsExisting(t *testing.T) {
	state := map[string]any{"items": []any{"rope"}}
	instrs, _ := merge.ParseSetCommand("items.append = \"torch\"\nitems.append = \"map\"")
	out, _ := merge.ApplyInstructions(state, instrs)
	assert.Equal(t, []any{"rope", "torch", "map"}, out["items"])
	assert.Equal(t, []any{"rope"}, state["items"])
}

func TestApplyInstructions_LastWriteWins(t *testing.T) {
	instrs, _ := merge.ParseSetCommand("a.b = 1\na.b = 2\na.c = true")
	out, _ := merge.ApplyInstructions(nil, instrs)
	assert.Equal(t, map[string]any{"b": float64(2), "c": true}, out["a"])
}

func TestApplyInstructions_AssignmentThenAppend(t *testing.T) {
	instrs, _ := merge.ParseSetCommand("xs.append = 3\nxs = [1, 2]")
	out, _ := merge.ApplyInstructions(map[string]any{}, instrs)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, out["xs"])
}

func TestApplyInstructions_ReplacesScalarIntermediate(t *testing.T) {
	state := map[string]any{"world_data": "flat"}
	instrs, _ := merge.ParseSetCommand(`world_data.location = "Keep"`)
	out, _ := merge.ApplyInstructions(state, instrs)
	assert.Equal(t, map[string]any{"location": "Keep"}, out["world_data"])
}

func TestApplyInstructions_EmptyIsNoop(t *testing.T) {
	state := map[string]any{"a": 1}
	out, changed := merge.ApplyInstructions(state, nil)
	assert.False(t, changed)
	assert.Equal(t, state, out)
}

func TestProperty_AppendCollectsEveryValueInOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		values := rapid.SliceOfN(rapid.IntRange(-100, 100), 1, 10).Draw(rt, "values")
		instrs := make([]merge.Instruction, len(values))
		want := make([]any, len(values))
		for i, v := range values {
			instrs[i] = merge.Instruction{Line: i + 1, Path: merge.Path{"q", "items"}, Value: v, Append: true}
			want[i] = v
		}
		out, _ := merge.ApplyInstructions(map[string]any{}, instrs)
		got, ok := merge.Lookup(out, merge.Path{"q", "items"})
		require.True(rt, ok)
		assert.Equal(rt, want, got)
	})
}
