// Package cache stores rendered upstream responses for a short time.
package cache

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var ErrMiss = errors.New("cache miss")

// Entry is a cached response.
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e *Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
}

// Stats are kept by the middleware, not by the store.
type Stats struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Bypass  int64  `json:"bypass"`
	Flushes int64  `json:"flushes"`
}
