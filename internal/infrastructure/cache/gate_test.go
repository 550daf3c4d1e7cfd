package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore simulates an unreachable backing store
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}
func (failingStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) Del(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
func (failingStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	return 0, false, errors.New("connection refused")
}
func (failingStore) Close() error { return nil }

// uncacheableResult opts out of the result cache
type uncacheableResult struct {
	Attempt int `json:"attempt"`
}

func (uncacheableResult) Cacheable() bool { return false }

func newTestGate(t *testing.T) (*Gate, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewGate(store, time.Minute, nil, nil), store
}

func TestProcessOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("executes work and caches result", func(t *testing.T) {
		gate, _ := newTestGate(t)

		calls := 0
		work := func(ctx context.Context) (any, error) {
			calls++
			return map[string]int{"generated": 2}, nil
		}

		first, err := gate.ProcessOnce(ctx, "order_processing:shop-1:order-1", time.Minute, work)
		require.NoError(t, err)
		assert.False(t, first.FromCache)
		assert.False(t, first.WasDuplicate)

		second, err := gate.ProcessOnce(ctx, "order_processing:shop-1:order-1", time.Minute, work)
		require.NoError(t, err)
		assert.True(t, second.FromCache)
		assert.JSONEq(t, string(first.Result), string(second.Result))
		assert.Equal(t, 1, calls)
	})

	t.Run("blocks concurrent duplicate without waiting", func(t *testing.T) {
		gate, _ := newTestGate(t)

		started := make(chan struct{})
		release := make(chan struct{})
		calls := 0
		var mu sync.Mutex

		go func() {
			_, _ = gate.ProcessOnce(ctx, "k", time.Minute, func(ctx context.Context) (any, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				close(started)
				<-release
				return "done", nil
			})
		}()

		<-started
		outcome, err := gate.ProcessOnce(ctx, "k", time.Minute, func(ctx context.Context) (any, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return "should not run", nil
		})
		close(release)

		require.NoError(t, err)
		assert.True(t, outcome.WasDuplicate)
		assert.Nil(t, outcome.Result)
		mu.Lock()
		assert.Equal(t, 1, calls)
		mu.Unlock()
	})

	t.Run("uncacheable result is returned but not cached", func(t *testing.T) {
		gate, store := newTestGate(t)

		calls := 0
		work := func(ctx context.Context) (any, error) {
			calls++
			return uncacheableResult{Attempt: calls}, nil
		}

		first, err := gate.ProcessOnce(ctx, "k", time.Minute, work)
		require.NoError(t, err)
		assert.False(t, first.FromCache)

		_, found, _ := store.Get(ctx, "k")
		assert.False(t, found)

		// Re-trigger re-executes instead of replaying the first result.
		second, err := gate.ProcessOnce(ctx, "k", time.Minute, work)
		require.NoError(t, err)
		assert.False(t, second.FromCache)
		assert.Equal(t, 2, calls)
	})

	t.Run("errors are not cached and marker is cleared", func(t *testing.T) {
		gate, store := newTestGate(t)

		_, err := gate.ProcessOnce(ctx, "k", time.Minute, func(ctx context.Context) (any, error) {
			return nil, errors.New("render failed")
		})
		require.Error(t, err)

		_, found, _ := store.Get(ctx, "k")
		assert.False(t, found)

		// Retry succeeds immediately, the marker does not linger.
		outcome, err := gate.ProcessOnce(ctx, "k", time.Minute, func(ctx context.Context) (any, error) {
			return "recovered", nil
		})
		require.NoError(t, err)
		assert.False(t, outcome.WasDuplicate)
	})

	t.Run("fails open when store is unreachable", func(t *testing.T) {
		gate := NewGate(failingStore{}, time.Minute, nil, nil)

		calls := 0
		outcome, err := gate.ProcessOnce(ctx, "k", time.Minute, func(ctx context.Context) (any, error) {
			calls++
			return "direct", nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		var result string
		require.NoError(t, json.Unmarshal(outcome.Result, &result))
		assert.Equal(t, "direct", result)
		assert.Equal(t, int64(1), gate.Metrics().Snapshot().Degraded)
	})
}

func TestGateMetrics(t *testing.T) {
	ctx := context.Background()
	gate, _ := newTestGate(t)

	work := func(ctx context.Context) (any, error) { return 1, nil }

	_, _ = gate.ProcessOnce(ctx, "a", time.Minute, work)
	_, _ = gate.ProcessOnce(ctx, "a", time.Minute, work) // cache hit
	_, _ = gate.ProcessOnce(ctx, "b", time.Minute, work)

	s := gate.Metrics().Snapshot()
	assert.Equal(t, int64(3), s.Total)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.Processed)
	assert.InDelta(t, 1.0/3.0, s.DedupRate, 0.001)
}

func TestGateStatus(t *testing.T) {
	ctx := context.Background()
	gate, store := newTestGate(t)

	status, err := gate.Status(ctx, "k")
	require.NoError(t, err)
	assert.False(t, status.Processing)

	_, err = store.SetNX(ctx, processingPrefix+"k", "1", time.Minute)
	require.NoError(t, err)

	status, err = gate.Status(ctx, "k")
	require.NoError(t, err)
	assert.True(t, status.Processing)
	assert.Greater(t, status.RemainingTTL, time.Duration(0))
}
