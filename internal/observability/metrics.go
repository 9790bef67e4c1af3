package observability

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// Metrics keeps process-local counters exposed on /metrics. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	mu          sync.Mutex
	requests    map[string]int64
	latencyMS   map[string]int64
	errors      map[string]int64
	transitions map[string]int64
	conflicts   map[string]int64
}

// Snapshot is a point-in-time copy of every counter. LatencyMillis holds the
// summed latency per request key.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	LatencyMillis map[string]int64 `json:"latency_ms"`
	Errors        map[string]int64 `json:"errors"`
	Transitions   map[string]int64 `json:"transitions"`
	Conflicts     map[string]int64 `json:"conflicts"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:    map[string]int64{},
		latencyMS:   map[string]int64{},
		errors:      map[string]int64{},
		transitions: map[string]int64{},
		conflicts:   map[string]int64{},
	}
}

// RecordRequest is keyed by route pattern, not raw path, to bound cardinality.
func (m *Metrics) RecordRequest(route, method string, status int, latency time.Duration) {
	key := fmt.Sprintf("%s|%s|%d", route, method, status)
	m.add(func() {
		m.requests[key]++
		m.latencyMS[key] += latency.Milliseconds()
	})
}

func (m *Metrics) RecordError(route, method, code string) {
	key := route + "|" + method + "|" + code
	m.add(func() { m.errors[key]++ })
}

// RecordTransition counts a committed status change per tenant and edge.
func (m *Metrics) RecordTransition(tenantID, fromStatusID, toStatusID int64) {
	key := fmt.Sprintf("%d|%d->%d", tenantID, fromStatusID, toStatusID)
	m.add(func() { m.transitions[key]++ })
}

// RecordConflict counts a rejected workflow mutation by error code.
func (m *Metrics) RecordConflict(code string) {
	m.add(func() { m.conflicts[code]++ })
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:      maps.Clone(m.requests),
		LatencyMillis: maps.Clone(m.latencyMS),
		Errors:        maps.Clone(m.errors),
		Transitions:   maps.Clone(m.transitions),
		Conflicts:     maps.Clone(m.conflicts),
	}
}

func (m *Metrics) add(fn func()) {
	if m == nil {
		return
	}
	m.mu.Lock()
	fn()
	m.mu.Unlock()
}
