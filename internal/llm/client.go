// Package llm connects the turn pipeline to the narrator model.
//
// The model is an untrusted collaborator: its reply is parsed into a narrative and
// an optional state proposal, and nothing else is assumed about it.
package llm

import (
	"context"
	"encoding/json"

	"github.com/cory-johannsen/chronicle/internal/game/state"
)

// Request is the context bundle sent to the narrator for one turn.
type Request struct {
	CampaignID string     `json:"-"`
	Mode       state.Mode `json:"mode"`
	// CurrentInput is the player's text with any mode prefix removed.
	CurrentInput string `json:"current_input"`
	// StoryContext holds recent story entries, oldest first.
	StoryContext []StoryLine    `json:"story_context"`
	GameState    map[string]any `json:"game_state"`
	// SystemCorrections are the previous turn's discrepancy findings.
	SystemCorrections []string `json:"system_corrections"`
}

// StoryLine is the narrator-facing view of a story entry.
type StoryLine struct {
	SequenceID int        `json:"sequence_id"`
	Actor      string     `json:"actor"`
	Mode       state.Mode `json:"mode"`
	Text       string     `json:"text"`
}

// StoryLines converts persisted entries into narrator-facing lines.
func StoryLines(entries []state.StoryEntry) []StoryLine {
	lines := make([]StoryLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, StoryLine{SequenceID: e.SequenceID, Actor: e.Actor, Mode: e.Mode, Text: e.Text})
	}
	return lines
}

// Encode renders r as the JSON document given to the model.
func (r Request) Encode() (string, error) {
	if r.StoryContext == nil {
		r.StoryContext = []StoryLine{}
	}
	if r.SystemCorrections == nil {
		r.SystemCorrections = []string{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Response is the parsed narrator reply.
type Response struct {
	Narrative string
	// StateUpdates is the proposed state delta, nil when the reply proposes none.
	StateUpdates map[string]any
	// Debug holds optional planning metadata.
	Debug map[string]any
	// Raw is the unparsed reply text.
	Raw string
}

// Client generates one narrator reply.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
