package llm

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/chronicle/internal/game/state"
)

// EchoClient narrates the player's own input back and proposes no state changes.
// It serves offline development and smoke tests.
type EchoClient struct{}

// Generate implements Client.
func (EchoClient) Generate(_ context.Context, req Request) (*Response, error) {
	narrative := fmt.Sprintf("You %s.", req.CurrentInput)
	if req.Mode == state.ModeThink {
		narrative = fmt.Sprintf("You consider: %s", req.CurrentInput)
	}
	return &Response{Narrative: narrative, Raw: narrative}, nil
}
