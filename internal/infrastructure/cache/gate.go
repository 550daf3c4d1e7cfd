package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const processingPrefix = "processing:"

// WorkFunc is the guarded operation. Its result is JSON-marshaled into the
// result cache on success.
type WorkFunc func(ctx context.Context) (any, error)

// Cacheable lets a work result opt out of the result cache. A result that
// reports false is returned to the caller but not cached, so the next
// trigger re-executes the work. Results that don't implement the interface
// are always cached.
type Cacheable interface {
	Cacheable() bool
}

// Outcome reports how a ProcessOnce call was resolved.
type Outcome struct {
	// Result is the JSON-encoded work result. Nil when the call was
	// blocked as a duplicate.
	Result json.RawMessage
	// FromCache is true when the result was served from the result cache
	// without re-execution.
	FromCache bool
	// WasDuplicate is true when an in-progress marker was active and the
	// work was not executed.
	WasDuplicate bool
}

// MarkerStatus describes the in-progress marker for a key, for the debug
// endpoint.
type MarkerStatus struct {
	Processing   bool          `json:"processing"`
	RemainingTTL time.Duration `json:"remaining_ttl"`
}

// Gate deduplicates expensive pipeline runs. A successful result is cached
// under the request key for the caller-supplied TTL; a short-lived
// in-progress marker blocks concurrent duplicates without making them wait.
//
// When the backing store is unreachable the gate fails open: the work runs
// without deduplication and the degraded execution is counted and logged.
type Gate struct {
	store         Store
	processingTTL time.Duration
	metrics       *GateMetrics
	logger        *zap.Logger
}

// NewGate creates a deduplication gate over the given store.
func NewGate(store Store, processingTTL time.Duration, metrics *GateMetrics, logger *zap.Logger) *Gate {
	if processingTTL <= 0 {
		processingTTL = 60 * time.Second
	}
	if metrics == nil {
		metrics = NewGateMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		store:         store,
		processingTTL: processingTTL,
		metrics:       metrics,
		logger:        logger,
	}
}

// ProcessOnce executes work at most once per distinct key within the
// in-progress marker window, caching the successful result for resultTTL.
// Duplicate concurrent calls return immediately with WasDuplicate set;
// callers must not wait for the first call to finish. Errors are never
// cached, a failed run can be retried as soon as its marker is cleared.
func (g *Gate) ProcessOnce(ctx context.Context, key string, resultTTL time.Duration, work WorkFunc) (*Outcome, error) {
	g.metrics.incTotal()

	cached, found, err := g.store.Get(ctx, key)
	if err != nil {
		return g.failOpen(ctx, key, err, work)
	}
	if found {
		g.metrics.incHits()
		return &Outcome{Result: json.RawMessage(cached), FromCache: true}, nil
	}

	acquired, err := g.store.SetNX(ctx, processingPrefix+key, "1", g.processingTTL)
	if err != nil {
		return g.failOpen(ctx, key, err, work)
	}
	if !acquired {
		g.metrics.incBlocked()
		g.logger.Info("duplicate request blocked by processing marker",
			zap.String("key", key))
		return &Outcome{WasDuplicate: true}, nil
	}

	result, workErr := work(ctx)
	if workErr != nil {
		// Clear the marker so the next trigger can retry; the error is
		// never cached.
		if delErr := g.store.Del(ctx, processingPrefix+key); delErr != nil {
			g.logger.Warn("failed to clear processing marker after error",
				zap.String("key", key), zap.Error(delErr))
		}
		return nil, workErr
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		if delErr := g.store.Del(ctx, processingPrefix+key); delErr != nil {
			g.logger.Warn("failed to clear processing marker",
				zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to encode work result: %w", err)
	}

	if shouldCache(result) {
		if err := g.store.Set(ctx, key, string(encoded), resultTTL); err != nil {
			g.logger.Warn("failed to cache work result",
				zap.String("key", key), zap.Error(err))
		}
	}
	if err := g.store.Del(ctx, processingPrefix+key); err != nil {
		g.logger.Warn("failed to clear processing marker",
			zap.String("key", key), zap.Error(err))
	}

	g.metrics.incProcessed()
	return &Outcome{Result: encoded}, nil
}

func shouldCache(result any) bool {
	if c, ok := result.(Cacheable); ok {
		return c.Cacheable()
	}
	return true
}

// failOpen runs the work without deduplication when the backing store is
// unreachable. Degraded executions are observable, never silent.
func (g *Gate) failOpen(ctx context.Context, key string, cause error, work WorkFunc) (*Outcome, error) {
	g.metrics.incDegraded()
	g.logger.Warn("dedup store unreachable, executing without deduplication",
		zap.String("key", key), zap.Error(cause))

	result, err := work(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode work result: %w", err)
	}
	g.metrics.incProcessed()
	return &Outcome{Result: encoded}, nil
}

// Status reports whether an in-progress marker is set for key and its
// remaining TTL.
func (g *Gate) Status(ctx context.Context, key string) (*MarkerStatus, error) {
	ttl, found, err := g.store.TTL(ctx, processingPrefix+key)
	if err != nil {
		return nil, err
	}
	return &MarkerStatus{Processing: found, RemainingTTL: ttl}, nil
}

// Metrics returns the gate's metrics for snapshot reads.
func (g *Gate) Metrics() *GateMetrics {
	return g.metrics
}
