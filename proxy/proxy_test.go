package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackt666/immoxx--sub004/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []security.Event
}

func (f *fakeEmitter) Emit(_ context.Context, e security.Event) security.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return e
}

func engineFor(t *testing.T, upstream string, events security.Emitter) *gin.Engine {
	t.Helper()
	p, err := New(Options{Upstream: upstream, LoginPaths: []string{"/api/auth/login"}, Events: events})
	require.NoError(t, err)
	r := gin.New()
	r.NoRoute(p.Handler())
	return r
}

func TestForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/properties", r.URL.Path)
		assert.Equal(t, "page=2", r.URL.RawQuery)
		assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
		w.Header().Set("X-Upstream", "yes")
		io.WriteString(w, "listing")
	}))
	defer upstream.Close()

	events := &fakeEmitter{}
	r := engineFor(t, upstream.URL, events)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/properties?page=2", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "listing", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
	assert.Empty(t, events.events)
}

func TestRejectedLoginEmitsEvent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	events := &fakeEmitter{}
	r := engineFor(t, upstream.URL, events)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "198.51.100.4:5000"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.Len(t, events.events, 1)
	e := events.events[0]
	assert.Equal(t, security.EventLoginFailed, e.Type)
	assert.Equal(t, security.SeverityMedium, e.Severity)
	assert.Equal(t, "198.51.100.4", e.IP)
	assert.Equal(t, "/api/auth/login", e.Path)
}

func TestUnreachableUpstreamReturns502(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	events := &fakeEmitter{}
	r := engineFor(t, addr, events)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Upstream service unavailable"}`, w.Body.String())

	require.Len(t, events.events, 1)
	assert.Equal(t, security.EventUpstreamUnavailable, events.events[0].Type)
	assert.Equal(t, security.SeverityHigh, events.events[0].Severity)
}

func TestWithoutUpstreamAnswers404(t *testing.T) {
	p, err := New(Options{})
	require.NoError(t, err)
	assert.False(t, p.Configured())

	r := gin.New()
	r.NoRoute(p.Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectsRelativeUpstream(t *testing.T) {
	_, err := New(Options{Upstream: "localhost:3000"})
	assert.Error(t, err)
}

func TestForwardsResolvedClientIP(t *testing.T) {
	seen := make(chan string, 2)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("X-Forwarded-For")
	}))
	defer upstream.Close()

	p, err := New(Options{Upstream: upstream.URL})
	require.NoError(t, err)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies([]string{"127.0.0.1"}))
	r.NoRoute(p.Handler())

	// behind a trusted load balancer
	req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.9", <-seen)

	// spoofed header from an untrusted peer
	req = httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	req.RemoteAddr = "198.51.100.4:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.4", <-seen)
}
