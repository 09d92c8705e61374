package state

import (
	"time"

	"github.com/google/uuid"
)

// Story actors.
const (
	ActorUser     = "user"
	ActorNarrator = "narrator"
)

// StoryEntry is one persisted line of campaign narrative history.
type StoryEntry struct {
	ID         uuid.UUID
	SequenceID int
	Actor      string
	Text       string
	Mode       Mode
	// Fields carries structured extras such as the applied state delta.
	Fields    map[string]any
	CreatedAt time.Time
}

// Snapshot is a campaign's persisted state as loaded at the start of a turn.
type Snapshot struct {
	CampaignID string
	State      map[string]any
	// Version is the optimistic-concurrency counter; a write must present it unchanged.
	Version        int64
	LastSequenceID int
	SceneCount     int
	// PendingCorrections were produced by the previous turn and feed the next LLM call.
	PendingCorrections []string
	UpdatedAt          time.Time
}
