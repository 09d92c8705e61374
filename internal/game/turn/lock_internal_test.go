package turn

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignLocks_SerializesSameCampaign(t *testing.T) {
	l := newCampaignLocks()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.acquire(context.Background(), "c1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.size(), "idle campaigns are dropped")
}

func TestCampaignLocks_DifferentCampaignsIndependent(t *testing.T) {
	l := newCampaignLocks()
	r1, err := l.acquire(context.Background(), "c1")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := l.acquire(ctx, "c2")
	require.NoError(t, err)
	r2()
}

func TestCampaignLocks_CancelledWaiter(t *testing.T) {
	l := newCampaignLocks()
	release, err := l.acquire(context.Background(), "c1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.acquire(ctx, "c1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.size())

	release()
	release()
	assert.Equal(t, 0, l.size())

	again, err := l.acquire(context.Background(), "c1")
	require.NoError(t, err)
	again()
}
