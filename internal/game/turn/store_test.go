package turn_test

import (
	"context"
	"sync"
	"time"

	"github.com/cory-johannsen/chronicle/internal/game/merge"
	"github.com/cory-johannsen/chronicle/internal/game/state"
	"github.com/cory-johannsen/chronicle/internal/llm"
	"github.com/cory-johannsen/chronicle/internal/storage/postgres"
)

// memStore is an in-memory turn.Store with the repository's version semantics.
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]*memCampaign
	puts      int
	commits   int
	// beforeCommit runs inside CommitTurn before the version check.
	beforeCommit func(c *memCampaign)
}

type memCampaign struct {
	snap  state.Snapshot
	story []state.StoryEntry
}

func newMemStore() *memStore {
	return &memStore{campaigns: make(map[string]*memCampaign)}
}

// seed stores doc as campaign id at version 1.
func (m *memStore) seed(id string, doc map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[id] = &memCampaign{snap: state.Snapshot{
		CampaignID: id,
		State:      merge.DeepCopyMap(doc),
		Version:    1,
	}}
}

func (m *memStore) snapshot(id string) state.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.campaigns[id].snap)
}

func (m *memStore) story(id string) []state.StoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]state.StoryEntry(nil), m.campaigns[id].story...)
}

func clone(s state.Snapshot) state.Snapshot {
	s.State = merge.DeepCopyMap(s.State)
	s.PendingCorrections = append([]string(nil), s.PendingCorrections...)
	return s
}

func (m *memStore) CreateCampaign(_ context.Context, id string, doc map[string]any) (state.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; ok {
		return state.Snapshot{}, postgres.ErrCampaignExists
	}
	c := &memCampaign{snap: state.Snapshot{
		CampaignID: id,
		State:      merge.DeepCopyMap(doc),
		Version:    1,
		UpdatedAt:  time.Now(),
	}}
	m.campaigns[id] = c
	return clone(c.snap), nil
}

func (m *memStore) GetState(_ context.Context, id string) (state.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return state.Snapshot{}, postgres.ErrCampaignNotFound
	}
	return clone(c.snap), nil
}

func (m *memStore) PutState(_ context.Context, id string, doc map[string]any, corrections []string, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return 0, postgres.ErrCampaignNotFound
	}
	if c.snap.Version != expectedVersion {
		return 0, postgres.ErrVersionConflict
	}
	m.puts++
	c.snap.State = merge.DeepCopyMap(doc)
	c.snap.PendingCorrections = append([]string(nil), corrections...)
	c.snap.Version++
	return c.snap.Version, nil
}

func (m *memStore) RecentStory(_ context.Context, id string, limit int) ([]state.StoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, postgres.ErrCampaignNotFound
	}
	story := c.story
	if limit > 0 && len(story) > limit {
		story = story[len(story)-limit:]
	}
	return append([]state.StoryEntry(nil), story...), nil
}

func (m *memStore) CommitTurn(_ context.Context, tc postgres.TurnCommit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[tc.CampaignID]
	if !ok {
		return 0, postgres.ErrCampaignNotFound
	}
	if m.beforeCommit != nil {
		m.beforeCommit(c)
	}
	if c.snap.Version != tc.ExpectedVersion {
		return 0, postgres.ErrVersionConflict
	}
	m.commits++
	c.snap.State = merge.DeepCopyMap(tc.State)
	c.snap.Version++
	c.snap.LastSequenceID = tc.LastSequenceID
	c.snap.SceneCount = tc.SceneCount
	c.snap.PendingCorrections = append([]string(nil), tc.PendingCorrections...)
	c.story = append(c.story, tc.Entries...)
	return c.snap.Version, nil
}

// scriptedNarrator replays queued replies and records every request.
type scriptedNarrator struct {
	mu       sync.Mutex
	replies  []*llm.Response
	err      error
	requests []llm.Request
}

func (n *scriptedNarrator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
	if n.err != nil {
		return nil, n.err
	}
	if len(n.replies) == 0 {
		return &llm.Response{Narrative: "Nothing happens."}, nil
	}
	r := n.replies[0]
	n.replies = n.replies[1:]
	return r, nil
}

func (n *scriptedNarrator) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.requests)
}
