// Package proxy forwards everything the gateway does not answer itself to the
// upstream site.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/ratelimit"
	"github.com/blackt666/immoxx--sub004/security"
)

type Options struct {
	Upstream   string
	LoginPaths []string
	Events     security.Emitter
	Logger     *zap.Logger
	Transport  http.RoundTripper
}

type Proxy struct {
	target     *url.URL
	loginPaths ratelimit.Classifier
	events     security.Emitter
	logger     *zap.Logger
	rp         *httputil.ReverseProxy
}

type clientKey struct{}

type client struct {
	ip        string
	userAgent string
	path      string
}

func New(opts Options) (*Proxy, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := &Proxy{
		loginPaths: ratelimit.Classifier{LoginPaths: opts.LoginPaths},
		events:     opts.Events,
		logger:     opts.Logger.Named("proxy"),
	}
	if opts.Upstream == "" {
		return p, nil
	}

	target, err := url.Parse(opts.Upstream)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.New("UPSTREAM_URL must be an absolute URL")
	}
	p.target = target

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		}
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// gin already resolved the client through TRUSTED_PROXIES
			if cl := clientFrom(pr.In.Context()); cl.ip != "" {
				pr.Out.Header.Set("X-Forwarded-For", cl.ip)
			}
		},
		Transport:      transport,
		ModifyResponse: p.inspect,
		ErrorHandler:   p.unavailable,
	}
	return p, nil
}

// Configured reports whether an upstream is set.
func (p *Proxy) Configured() bool {
	return p.target != nil
}

func (p *Proxy) Upstream() string {
	if p.target == nil {
		return ""
	}
	return p.target.String()
}

func (p *Proxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p.rp == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		ctx := context.WithValue(c.Request.Context(), clientKey{}, client{
			ip:        c.ClientIP(),
			userAgent: c.Request.UserAgent(),
			path:      c.Request.URL.Path,
		})
		p.rp.ServeHTTP(c.Writer, c.Request.WithContext(ctx))
	}
}

func clientFrom(ctx context.Context) client {
	cl, _ := ctx.Value(clientKey{}).(client)
	return cl
}

// inspect reports rejected logins coming back from the upstream.
func (p *Proxy) inspect(resp *http.Response) error {
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return nil
	}
	ctx := resp.Request.Context()
	cl := clientFrom(ctx)
	if p.loginPaths.Classify(cl.path) != ratelimit.CategoryLogin {
		return nil
	}

	p.emit(ctx, security.Event{
		Type:      security.EventLoginFailed,
		Severity:  security.SeverityMedium,
		Message:   "Login rejected by the application",
		IP:        cl.ip,
		UserAgent: cl.userAgent,
		Path:      cl.path,
		Details:   map[string]interface{}{"status": resp.StatusCode},
	})
	return nil
}

func (p *Proxy) unavailable(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// client went away
		w.WriteHeader(499)
		return
	}

	cl := clientFrom(r.Context())
	p.logger.Error("Upstream request failed",
		zap.String("method", r.Method),
		zap.String("path", cl.path),
		zap.Error(err))

	p.emit(r.Context(), security.Event{
		Type:      security.EventUpstreamUnavailable,
		Severity:  security.SeverityHigh,
		Message:   "Upstream application unreachable",
		IP:        cl.ip,
		UserAgent: cl.userAgent,
		Path:      cl.path,
		Details: map[string]interface{}{
			"upstream": p.target.Host,
			"error":    err.Error(),
		},
	})

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	w.Write([]byte(`{"error":"Upstream service unavailable"}`))
}

func (p *Proxy) emit(ctx context.Context, e security.Event) {
	if p.events != nil {
		p.events.Emit(ctx, e)
	}
}
