package turn

import (
	"context"
	"sync"
)

// campaignLocks serializes turns per campaign within one process.
// Entries are reference counted and dropped once nobody holds or waits on them.
type campaignLocks struct {
	mu    sync.Mutex
	locks map[string]*campaignLock
}

type campaignLock struct {
	sem  chan struct{}
	refs int
}

func newCampaignLocks() *campaignLocks {
	return &campaignLocks{locks: make(map[string]*campaignLock)}
}

// acquire blocks until id is free or ctx is done.
//
// Postcondition: On success the returned release must be called exactly once;
// further calls are ignored. On ctx cancellation the error is ctx.Err().
func (l *campaignLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	cl, ok := l.locks[id]
	if !ok {
		cl = &campaignLock{sem: make(chan struct{}, 1)}
		l.locks[id] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(id, cl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-cl.sem
			l.drop(id, cl)
		})
	}, nil
}

func (l *campaignLocks) drop(id string, cl *campaignLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.locks, id)
	}
}

// size reports how many campaigns currently have holders or waiters.
func (l *campaignLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
