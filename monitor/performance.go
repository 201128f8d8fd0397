// Package monitor keeps a bounded history of request timings and derives
// simple aggregate statistics from it.
package monitor

import (
	"sort"
	"sync"
	"time"
)

const DefaultCapacity = 1000

// Sample is one finished request.
type Sample struct {
	Method    string        `json:"method"`
	Route     string        `json:"route"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

type EndpointStats struct {
	Endpoint      string  `json:"endpoint"`
	Count         int     `json:"count"`
	AverageMillis float64 `json:"average_ms"`
	MaxMillis     float64 `json:"max_ms"`
	Errors        int     `json:"errors"`
}

type Stats struct {
	TotalRequests  int             `json:"total_requests"`
	AverageMillis  float64         `json:"average_ms"`
	MaxMillis      float64         `json:"max_ms"`
	ServerErrors   int             `json:"server_errors"`
	ClientErrors   int             `json:"client_errors"`
	ErrorRate      float64         `json:"error_rate"`
	SlowRequests   int             `json:"slow_requests"`
	SlowThreshold  string          `json:"slow_threshold"`
	Since          *time.Time      `json:"since,omitempty"`
	Endpoints      []EndpointStats `json:"endpoints"`
	BufferCapacity int             `json:"buffer_capacity"`
}

// Monitor is a fixed-size ring of samples. The oldest sample is overwritten
// once the ring is full.
type Monitor struct {
	mu            sync.RWMutex
	samples       []Sample
	next          int
	full          bool
	slowThreshold time.Duration
}

func New(capacity int, slowThreshold time.Duration) *Monitor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	return &Monitor{
		samples:       make([]Sample, capacity),
		slowThreshold: slowThreshold,
	}
}

func (m *Monitor) SlowThreshold() time.Duration {
	return m.slowThreshold
}

// IsSlow reports whether d is over the slow threshold.
func (m *Monitor) IsSlow(d time.Duration) bool {
	return d > m.slowThreshold
}

func (m *Monitor) Record(s Sample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples[m.next] = s
	m.next++
	if m.next == len(m.samples) {
		m.next = 0
		m.full = true
	}
}

func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.samples)
	}
	return m.next
}

// snapshot returns samples oldest first. Caller holds the read lock.
func (m *Monitor) snapshot() []Sample {
	if !m.full {
		out := make([]Sample, m.next)
		copy(out, m.samples[:m.next])
		return out
	}
	out := make([]Sample, 0, len(m.samples))
	out = append(out, m.samples[m.next:]...)
	out = append(out, m.samples[:m.next]...)
	return out
}

// Recent returns up to limit samples, newest first.
func (m *Monitor) Recent(limit int) []Sample {
	m.mu.RLock()
	all := m.snapshot()
	m.mu.RUnlock()

	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Sample, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out
}

// Stats aggregates the buffered samples. A zero since means all of them.
func (m *Monitor) Stats(since time.Time) Stats {
	m.mu.RLock()
	all := m.snapshot()
	m.mu.RUnlock()

	st := Stats{
		SlowThreshold:  m.slowThreshold.String(),
		BufferCapacity: len(m.samples),
		Endpoints:      []EndpointStats{},
	}
	if !since.IsZero() {
		st.Since = &since
	}

	type acc struct {
		count  int
		total  time.Duration
		max    time.Duration
		errors int
	}
	groups := make(map[string]*acc)

	var total, max time.Duration
	for _, s := range all {
		if !since.IsZero() && s.Timestamp.Before(since) {
			continue
		}
		st.TotalRequests++
		total += s.Duration
		if s.Duration > max {
			max = s.Duration
		}
		switch {
		case s.Status >= 500:
			st.ServerErrors++
		case s.Status >= 400:
			st.ClientErrors++
		}
		if m.IsSlow(s.Duration) {
			st.SlowRequests++
		}

		key := s.Method + " " + s.Route
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
		}
		g.count++
		g.total += s.Duration
		if s.Duration > g.max {
			g.max = s.Duration
		}
		if s.Status >= 500 {
			g.errors++
		}
	}

	if st.TotalRequests == 0 {
		return st
	}

	st.AverageMillis = millis(total) / float64(st.TotalRequests)
	st.MaxMillis = millis(max)
	st.ErrorRate = float64(st.ServerErrors) / float64(st.TotalRequests)

	for key, g := range groups {
		st.Endpoints = append(st.Endpoints, EndpointStats{
			Endpoint:      key,
			Count:         g.count,
			AverageMillis: millis(g.total) / float64(g.count),
			MaxMillis:     millis(g.max),
			Errors:        g.errors,
		})
	}
	sort.Slice(st.Endpoints, func(i, j int) bool {
		if st.Endpoints[i].Count != st.Endpoints[j].Count {
			return st.Endpoints[i].Count > st.Endpoints[j].Count
		}
		return st.Endpoints[i].Endpoint < st.Endpoints[j].Endpoint
	})
	return st
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
