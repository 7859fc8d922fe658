package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	started      time.Time
	requestCount map[string]int64
	errorCount   map[string]int64
	latencyTotal map[string]time.Duration
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	UptimeSeconds  int64            `json:"uptime_seconds"`
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	AvgLatencyMsec map[string]int64 `json:"avg_latency_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started:      time.Now(),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		latencyTotal: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		UptimeSeconds:  int64(time.Since(m.started).Seconds()),
		Requests:       make(map[string]int64, len(m.requestCount)),
		Errors:         make(map[string]int64, len(m.errorCount)),
		AvgLatencyMsec: make(map[string]int64, len(m.latencyTotal)),
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		snap.AvgLatencyMsec[k] = (m.latencyTotal[k] / time.Duration(v)).Milliseconds()
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
