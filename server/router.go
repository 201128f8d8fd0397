// Package server assembles the gateway: middleware chain, gateway API and the
// upstream proxy.
package server

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/cache"
	"github.com/blackt666/immoxx--sub004/handlers/admin"
	"github.com/blackt666/immoxx--sub004/handlers/auth"
	"github.com/blackt666/immoxx--sub004/handlers/health"
	"github.com/blackt666/immoxx--sub004/handlers/reports"
	"github.com/blackt666/immoxx--sub004/middleware"
	"github.com/blackt666/immoxx--sub004/monitor"
	"github.com/blackt666/immoxx--sub004/proxy"
	"github.com/blackt666/immoxx--sub004/ratelimit"
	"github.com/blackt666/immoxx--sub004/security"
)

const APIPrefix = "/gateway/api"

type Deps struct {
	Logger         *zap.Logger
	CORSOrigins    []string
	TrustedProxies []string
	Metrics        *monitor.Metrics
	Monitor        *monitor.Monitor
	Events         *security.Pipeline
	Limiter        *ratelimit.Limiter
	Classifier     ratelimit.Classifier
	Cache          *cache.Cache
	Proxy          *proxy.Proxy
	Auth           *auth.Handler
	Admin          *admin.Handler
	Reports        *reports.Handler
	Health         *health.Handler
}

func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	r.Use(
		middleware.RequestID(),
		middleware.Recovery(d.Logger, d.Events),
		middleware.RequestLogger(d.Logger.Named("http")),
	)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, cache.HeaderName, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(
		middleware.SecurityHeaders(),
		middleware.Performance(d.Monitor, d.Metrics, d.Logger.Named("performance")),
		middleware.RateLimit(d.Limiter, d.Classifier, d.Events, d.Metrics),
		d.Cache.Handler(),
	)

	r.GET("/healthz", d.Health.Health)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group(APIPrefix)
	auth.RegisterAuthRoutes(api, d.Auth)
	reports.RegisterReportRoutes(api, d.Reports)

	protected := api.Group("")
	protected.Use(d.Auth.AuthMiddleware())
	admin.RegisterAdminRoutes(protected, d.Admin)

	// Everything else belongs to the application behind the gateway
	r.NoRoute(d.Proxy.Handler())
	return r, nil
}
