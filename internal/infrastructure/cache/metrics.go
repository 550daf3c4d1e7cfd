package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// GateMetrics tracks deduplication effectiveness. Counters are mirrored to
// prometheus for scraping and kept as atomics for the snapshot endpoint.
type GateMetrics struct {
	total     atomic.Int64
	hits      atomic.Int64
	blocked   atomic.Int64
	processed atomic.Int64
	degraded  atomic.Int64

	promTotal     prometheus.Counter
	promHits      prometheus.Counter
	promBlocked   prometheus.Counter
	promProcessed prometheus.Counter
	promDegraded  prometheus.Counter
}

// NewGateMetrics creates gate metrics registered on the given registerer.
// Pass nil to keep the counters process-local only.
func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	m := &GateMetrics{
		promTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_gate_requests_total",
			Help: "Total requests through the deduplication gate",
		}),
		promHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_gate_cache_hits_total",
			Help: "Requests answered from the result cache",
		}),
		promBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_gate_duplicates_blocked_total",
			Help: "Requests blocked by an active in-progress marker",
		}),
		promProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_gate_processed_total",
			Help: "Work executions performed",
		}),
		promDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_gate_degraded_total",
			Help: "Executions that bypassed deduplication because the backing store was unreachable",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.promTotal, m.promHits, m.promBlocked, m.promProcessed, m.promDegraded)
	}
	return m
}

func (m *GateMetrics) incTotal()     { m.total.Add(1); m.promTotal.Inc() }
func (m *GateMetrics) incHits()      { m.hits.Add(1); m.promHits.Inc() }
func (m *GateMetrics) incBlocked()   { m.blocked.Add(1); m.promBlocked.Inc() }
func (m *GateMetrics) incProcessed() { m.processed.Add(1); m.promProcessed.Inc() }
func (m *GateMetrics) incDegraded()  { m.degraded.Add(1); m.promDegraded.Inc() }

// MetricsSnapshot is a point-in-time view of the gate counters.
type MetricsSnapshot struct {
	Total     int64   `json:"total"`
	CacheHits int64   `json:"cache_hits"`
	Blocked   int64   `json:"blocked"`
	Processed int64   `json:"processed"`
	Degraded  int64   `json:"degraded"`
	DedupRate float64 `json:"dedup_rate"`
}

// Snapshot returns the current counters with the derived deduplication rate
// (hits + blocked) / total.
func (m *GateMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Total:     m.total.Load(),
		CacheHits: m.hits.Load(),
		Blocked:   m.blocked.Load(),
		Processed: m.processed.Load(),
		Degraded:  m.degraded.Load(),
	}
	if s.Total > 0 {
		s.DedupRate = float64(s.CacheHits+s.Blocked) / float64(s.Total)
	}
	return s
}
