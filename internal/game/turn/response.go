package turn

import (
	apperrors "github.com/cory-johannsen/chronicle/internal/errors"
)

// Response is the client-facing result of one turn.
type Response struct {
	Success   bool           `json:"success"`
	Narrative string         `json:"narrative"`
	GameState map[string]any `json:"game_state"`
	// StateUpdates is the delta actually applied. Only populated with debug_mode on.
	StateUpdates      map[string]any `json:"state_updates,omitempty"`
	SequenceID        int            `json:"sequence_id"`
	UserSceneNumber   int            `json:"user_scene_number"`
	SystemCorrections []string       `json:"system_corrections,omitempty"`
	DebugMode         bool           `json:"debug_mode"`
	// PendingUpgrade is "divine", "multiverse", or empty.
	PendingUpgrade string   `json:"pending_upgrade,omitempty"`
	RemovedEnemies []string `json:"removed_enemies,omitempty"`
	// Error carries internal error text outside production.
	Error string `json:"error,omitempty"`
}

func systemMessage(text string) string {
	return "[System Message: " + text + "]"
}

// ErrorResponse renders err as a failed turn.
//
// Postcondition: Narrative is a "[System Message: ...]" line built from the
// domain message only. Error holds the full error chain unless production is set.
func ErrorResponse(err error, production bool) *Response {
	resp := &Response{
		Success:   false,
		Narrative: systemMessage(apperrors.Message(err)),
	}
	if !production {
		resp.Error = err.Error()
	}
	return resp
}
