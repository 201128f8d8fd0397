// Package ratelimit implements fixed-window request counting per client and
// route category.
package ratelimit

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type Category string

const (
	CategoryLogin   Category = "login"
	CategoryAdmin   Category = "admin"
	CategoryGeneral Category = "general"
)

// Rule is the threshold for one category.
type Rule struct {
	Limit  int
	Window time.Duration
	// RefundSuccess gives the slot back when the request succeeded, so only
	// failures count against the window.
	RefundSuccess bool
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed     bool
	Limit       int
	Remaining   int
	WindowStart time.Time
	ResetAt     time.Time
	RetryAfter  time.Duration
}

// Entry is a live counter, exported for the admin snapshot.
type Entry struct {
	Category    Category  `json:"category"`
	Key         string    `json:"key"`
	Count       int       `json:"count"`
	Limit       int       `json:"limit"`
	WindowStart time.Time `json:"window_start"`
	ResetAt     time.Time `json:"reset_at"`
}

type window struct {
	count int
	start time.Time
}

type Limiter struct {
	mu      sync.Mutex
	rules   map[Category]Rule
	windows map[string]*window
	now     func() time.Time
}

// New builds a limiter. Categories without a rule are never limited.
func New(rules map[Category]Rule, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	copied := make(map[Category]Rule, len(rules))
	for cat, rule := range rules {
		copied[cat] = rule
	}
	return &Limiter{
		rules:   copied,
		windows: make(map[string]*window),
		now:     now,
	}
}

func (l *Limiter) Rule(cat Category) (Rule, bool) {
	rule, ok := l.rules[cat]
	return rule, ok
}

func entryKey(cat Category, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	return string(cat) + ":" + key
}

// Allow counts a request for key in cat and reports whether it may proceed.
func (l *Limiter) Allow(cat Category, key string) Decision {
	rule, ok := l.rules[cat]
	if !ok || rule.Limit <= 0 {
		return Decision{Allowed: true}
	}

	now := l.now()
	k := entryKey(cat, key)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[k]
	if !exists || !now.Before(w.start.Add(rule.Window)) || now.Before(w.start) {
		w = &window{start: now}
		l.windows[k] = w
	}
	w.count++

	resetAt := w.start.Add(rule.Window)
	d := Decision{
		Allowed:     w.count <= rule.Limit,
		Limit:       rule.Limit,
		WindowStart: w.start,
		ResetAt:     resetAt,
	}
	if remaining := rule.Limit - w.count; remaining > 0 {
		d.Remaining = remaining
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
	}
	return d
}

// Refund gives back one request counted in the window that started at
// windowStart. It never drops below zero and ignores windows that have since
// been replaced.
func (l *Limiter) Refund(cat Category, key string, windowStart time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w, ok := l.windows[entryKey(cat, key)]; ok && w.count > 0 && w.start.Equal(windowStart) {
		w.count--
	}
}

// Sweep drops counters whose window has ended and returns how many went.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, w := range l.windows {
		rule, ok := l.rules[categoryOf(k)]
		if !ok || !now.Before(w.start.Add(rule.Window)) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// Snapshot lists live counters, busiest first.
func (l *Limiter) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, 0, len(l.windows))
	for k, w := range l.windows {
		cat := categoryOf(k)
		rule := l.rules[cat]
		entries = append(entries, Entry{
			Category:    cat,
			Key:         strings.TrimPrefix(k, string(cat)+":"),
			Count:       w.count,
			Limit:       rule.Limit,
			WindowStart: w.start,
			ResetAt:     w.start.Add(rule.Window),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func categoryOf(k string) Category {
	if i := strings.IndexByte(k, ':'); i >= 0 {
		return Category(k[:i])
	}
	return Category(k)
}
