package cache

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/ratelimit"
)

const (
	HeaderName    = "X-Cache"
	maxCachedBody = 2 << 20
)

// Headers that describe a single exchange and must not be replayed.
var volatileHeaders = []string{
	HeaderName,
	"Set-Cookie",
	"Date",
	"X-Request-Id",
	"X-Ratelimit-Limit",
	"X-Ratelimit-Remaining",
	"X-Ratelimit-Reset",
	"Retry-After",
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Credentials",
	"Access-Control-Expose-Headers",
}

// Vary values the key already accounts for. Origin only drives CORS headers,
// which are recomputed for every request.
var keyedVary = map[string]bool{
	"accept-encoding": true,
	"origin":          true,
}

var knownEncodings = map[string]bool{"br": true, "deflate": true, "gzip": true, "zstd": true}

// encodingVariant reduces Accept-Encoding to the sorted codings the client
// accepts, so "gzip, br" and "br;q=1.0, gzip" share an entry.
func encodingVariant(header string) string {
	var accepted []string
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(part, ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if !knownEncodings[name] {
			continue
		}
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if v, err := strconv.ParseFloat(strings.TrimSpace(q), 64); err == nil && v == 0 {
				continue
			}
		}
		accepted = append(accepted, name)
	}
	if len(accepted) == 0 {
		return "identity"
	}
	sort.Strings(accepted)
	return strings.Join(accepted, "+")
}

func cacheKey(r *http.Request) string {
	return r.URL.RequestURI() + "|" + encodingVariant(r.Header.Get("Accept-Encoding"))
}

type Options struct {
	Store         Store
	Backend       string
	Prefixes      []string
	AdminPrefixes []string
	TTL           time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// Cache is the response cache middleware plus its counters.
type Cache struct {
	store         Store
	backend       string
	prefixes      []string
	adminPrefixes []string
	ttl           time.Duration
	logger        *zap.Logger
	now           func() time.Time

	hits    atomic.Int64
	misses  atomic.Int64
	bypass  atomic.Int64
	flushes atomic.Int64
}

func New(opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Backend == "" {
		opts.Backend = "memory"
	}
	return &Cache{
		store:         opts.Store,
		backend:       opts.Backend,
		prefixes:      opts.Prefixes,
		adminPrefixes: opts.AdminPrefixes,
		ttl:           opts.TTL,
		logger:        opts.Logger.Named("cache"),
		now:           opts.Now,
	}
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if ratelimit.HasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

func (ca *Cache) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		path := r.URL.Path

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			c.Next()
			if matchesAny(path, ca.adminPrefixes) && c.Writer.Status() < http.StatusBadRequest {
				if _, err := ca.Flush(r.Context()); err != nil {
					ca.logger.Warn("Failed to flush cache after admin write", zap.String("path", path), zap.Error(err))
				}
			}
			return
		}

		if !matchesAny(path, ca.prefixes) {
			c.Next()
			return
		}

		if r.Header.Get("Authorization") != "" || r.Header.Get("Cookie") != "" {
			ca.bypass.Add(1)
			c.Header(HeaderName, "BYPASS")
			c.Next()
			return
		}

		key := cacheKey(r)
		entry, err := ca.store.Get(r.Context(), key)
		if err == nil {
			ca.hits.Add(1)
			ca.replay(c, entry)
			return
		}
		if !errors.Is(err, ErrMiss) {
			ca.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}

		ca.misses.Add(1)
		c.Header(HeaderName, "MISS")
		if r.Method == http.MethodHead {
			c.Next()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if !w.cacheable(encodingVariant(r.Header.Get("Accept-Encoding"))) {
			return
		}
		e := &Entry{
			Status:   w.Status(),
			Header:   storedHeader(w.Header()),
			Body:     w.buf.Bytes(),
			StoredAt: ca.now(),
		}
		if err := ca.store.Set(r.Context(), key, e, ca.ttl); err != nil {
			ca.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (ca *Cache) replay(c *gin.Context, e *Entry) {
	h := c.Writer.Header()
	for k, v := range e.Header {
		// headers set for this request by earlier middleware win
		if _, set := h[k]; set {
			continue
		}
		h[k] = append([]string(nil), v...)
	}
	h.Set(HeaderName, "HIT")
	h.Set("Age", strconv.Itoa(int(ca.now().Sub(e.StoredAt).Seconds())))

	c.Status(e.Status)
	if c.Request.Method == http.MethodHead {
		c.Writer.WriteHeaderNow()
	} else {
		c.Writer.Write(e.Body)
	}
	c.Abort()
}

func storedHeader(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range volatileHeaders {
		out.Del(k)
	}
	return out
}

// Flush empties the store.
func (ca *Cache) Flush(ctx context.Context) (int, error) {
	n, err := ca.store.Flush(ctx)
	if err != nil {
		return 0, err
	}
	ca.flushes.Add(1)
	ca.logger.Info("Cache flushed", zap.Int("entries", n))
	return n, nil
}

// Sweep drops expired entries when the store supports it.
func (ca *Cache) Sweep() int {
	if sw, ok := ca.store.(interface{ Sweep() int }); ok {
		return sw.Sweep()
	}
	return 0
}

func (ca *Cache) Stats(ctx context.Context) (Stats, error) {
	n, err := ca.store.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend: ca.backend,
		Entries: n,
		Hits:    ca.hits.Load(),
		Misses:  ca.misses.Load(),
		Bypass:  ca.bypass.Load(),
		Flushes: ca.flushes.Load(),
	}, nil
}

// captureWriter copies the body as it is written to the client.
type captureWriter struct {
	gin.ResponseWriter
	buf      bytes.Buffer
	overflow bool
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.keep(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.keep([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *captureWriter) keep(b []byte) {
	if w.overflow {
		return
	}
	if w.buf.Len()+len(b) > maxCachedBody {
		w.overflow = true
		w.buf.Reset()
		return
	}
	w.buf.Write(b)
}

// cacheable rejects responses that could be wrong for another client sharing
// the key: anything varying on headers outside the key, or encoded with a
// coding the requester did not offer.
func (w *captureWriter) cacheable(variant string) bool {
	if w.overflow || w.Status() != http.StatusOK {
		return false
	}
	h := w.Header()
	if h.Get("Set-Cookie") != "" {
		return false
	}
	for _, v := range h.Values("Vary") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" && !keyedVary[name] {
				return false
			}
		}
	}
	if ce := strings.ToLower(strings.TrimSpace(h.Get("Content-Encoding"))); ce != "" && ce != "identity" {
		if !strings.Contains("+"+variant+"+", "+"+ce+"+") {
			return false
		}
	}
	cc := strings.ToLower(h.Get("Cache-Control"))
	return !strings.Contains(cc, "no-store") && !strings.Contains(cc, "private")
}
