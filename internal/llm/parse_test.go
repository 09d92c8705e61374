package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/chronicle/internal/game/state"
	"github.com/cory-johannsen/chronicle/internal/llm"
)

func TestParseResponse_PlainJSON(t *testing.T) {
	resp, err := llm.ParseResponse(`{"narrative":"Hi","state_updates":{"a":1},"debug_info":{"plan":"x"}}`)
	require.NoError(t, err)
	assert.Equal(t, "Hi", resp.Narrative)
	assert.Equal(t, map[string]any{"a": float64(1)}, resp.StateUpdates)
	assert.Equal(t, map[string]any{"plan": "x"}, resp.Debug)
}

func TestParseResponse_Fences(t *testing.T) {
	for _, text := range []string{
		"```json\n{\"narrative\":\"n\"}\n```",
		"```\n{\"narrative\":\"n\"}\n```",
		"```{\"narrative\":\"n\"}```",
		"\n  {\"narrative\":\"n\"}  \n",
	} {
		resp, err := llm.ParseResponse(text)
		require.NoError(t, err, text)
		assert.Equal(t, "n", resp.Narrative)
		assert.Equal(t, text, resp.Raw)
	}
}

func TestParseResponse_NoOrEmptyUpdates(t *testing.T) {
	for _, text := range []string{
		`{"narrative":"n"}`,
		`{"narrative":"n","state_updates":null}`,
		`{"narrative":"n","state_updates":{}}`,
	} {
		resp, err := llm.ParseResponse(text)
		require.NoError(t, err)
		assert.Nil(t, resp.StateUpdates, text)
	}
}

func TestParseResponse_Rejects(t *testing.T) {
	_, err := llm.ParseResponse("not json at all")
	assert.Error(t, err)

	_, err = llm.ParseResponse(`{"narrative":"n","state_updates":[1,2]}`)
	assert.Error(t, err)

	_, err = llm.ParseResponse(`["narrative"]`)
	assert.Error(t, err)
}

func TestParseResponse_BadDebugIgnored(t *testing.T) {
	resp, err := llm.ParseResponse(`{"narrative":"n","debug_info":"plan text"}`)
	require.NoError(t, err)
	assert.Nil(t, resp.Debug)
}

func TestProperty_ParseResponse_NarrativeSurvivesFencing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		narrative := rapid.StringMatching(`[A-Za-z ,.!]{0,40}`).Draw(rt, "narrative")
		fence := rapid.SampledFrom([]string{"", "```", "```json\n"}).Draw(rt, "fence")
		body := `{"narrative":"` + narrative + `"}`
		text := body
		if fence != "" {
			text = fence + body + "\n```"
		}
		resp, err := llm.ParseResponse(text)
		require.NoError(rt, err)
		assert.Equal(rt, narrative, resp.Narrative)
	})
}

func TestStoryLines(t *testing.T) {
	lines := llm.StoryLines([]state.StoryEntry{
		{SequenceID: 1, Actor: state.ActorUser, Mode: state.ModeCharacter, Text: "I open the door"},
		{SequenceID: 2, Actor: state.ActorNarrator, Mode: state.ModeCharacter, Text: "It creaks."},
	})
	require.Len(t, lines, 2)
	assert.Equal(t, "narrator", lines[1].Actor)
	assert.Equal(t, 2, lines[1].SequenceID)
}

func TestEchoClient(t *testing.T) {
	resp, err := llm.EchoClient{}.Generate(context.Background(), llm.Request{Mode: state.ModeCharacter, CurrentInput: "look around"})
	require.NoError(t, err)
	assert.Equal(t, "You look around.", resp.Narrative)
	assert.Nil(t, resp.StateUpdates)

	resp, err = llm.EchoClient{}.Generate(context.Background(), llm.Request{Mode: state.ModeThink, CurrentInput: "flee?"})
	require.NoError(t, err)
	assert.Equal(t, "You consider: flee?", resp.Narrative)
}
