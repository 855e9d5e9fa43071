package resolve

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_CountsCalls(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Acquire(context.Background(), "serper"))
	}
	require.NoError(t, tr.Acquire(context.Background(), "nominatim"))

	assert.Equal(t, int64(3), tr.Calls("serper"))
	assert.Equal(t, int64(1), tr.Calls("nominatim"))
	assert.Equal(t, int64(0), tr.Calls("never-used"))

	snap := tr.Snapshot()
	assert.Equal(t, int64(3), snap["serper"])
	assert.Equal(t, int64(1), snap["nominatim"])
}

func TestTracker_ConcurrentAcquire(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Acquire(context.Background(), "jina")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), tr.Calls("jina"))
}

func TestTracker_ConcurrentSetLimitAndAcquire(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.SetLimit("mixed", 1000, 1000)
		}()
		go func() {
			defer wg.Done()
			require.NoError(t, tr.Acquire(context.Background(), "mixed"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), tr.Calls("mixed"))
}

func TestTracker_LimiterHonorsContext(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.SetLimit("slow", 0.001, 1)

	// Burn the single burst token.
	require.NoError(t, tr.Acquire(context.Background(), "slow"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.Acquire(ctx, "slow")
	require.Error(t, err)
	assert.Equal(t, int64(1), tr.Calls("slow"))
}
