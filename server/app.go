package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/cache"
	"github.com/blackt666/immoxx--sub004/calendar"
	"github.com/blackt666/immoxx--sub004/handlers/admin"
	"github.com/blackt666/immoxx--sub004/handlers/auth"
	"github.com/blackt666/immoxx--sub004/handlers/health"
	"github.com/blackt666/immoxx--sub004/handlers/reports"
	"github.com/blackt666/immoxx--sub004/monitor"
	"github.com/blackt666/immoxx--sub004/proxy"
	"github.com/blackt666/immoxx--sub004/ratelimit"
	"github.com/blackt666/immoxx--sub004/scheduler"
	"github.com/blackt666/immoxx--sub004/security"
	"github.com/blackt666/immoxx--sub004/utils"
)

// App owns every long-lived component of a gateway process.
type App struct {
	Config    *utils.Config
	Logger    *zap.Logger
	GatewayDB *gorm.DB
	AppDB     *gorm.DB
	Events    *security.Pipeline
	Limiter   *ratelimit.Limiter
	Cache     *cache.Cache
	Calendar  *calendar.Maintainer
	Router    *gin.Engine
	Scheduler *scheduler.Scheduler

	closers []func() error
}

// Build wires the application from cfg.
func Build(cfg *utils.Config, logger *zap.Logger) (*App, error) {
	gatewayDB, appDB, err := utils.ConnectDatabases(cfg)
	if err != nil {
		return nil, err
	}
	return BuildWithDatabases(cfg, logger, gatewayDB, appDB)
}

// BuildWithDatabases wires the application around already open databases.
func BuildWithDatabases(cfg *utils.Config, logger *zap.Logger, gatewayDB, appDB *gorm.DB) (*App, error) {
	a := &App{Config: cfg, Logger: logger, GatewayDB: gatewayDB, AppDB: appDB}
	a.closers = append(a.closers, func() error { return closeDatabases(gatewayDB, appDB) })

	var routePrefixes []string
	for _, list := range []string{cfg.LoginPaths, cfg.AdminPrefixes, cfg.CachePrefixes} {
		routePrefixes = append(routePrefixes, utils.SplitList(list)...)
	}
	metrics := monitor.NewMetrics(routePrefixes...)

	sinks, err := buildSinks(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Events = security.NewPipeline(security.Options{
		Logger:  logger,
		Store:   security.NewGormStore(gatewayDB),
		Sinks:   sinks,
		Metrics: metrics,
	})
	a.closers = append(a.closers, func() error { a.Events.Close(); return nil })

	a.Limiter = ratelimit.New(map[ratelimit.Category]ratelimit.Rule{
		ratelimit.CategoryLogin:   {Limit: cfg.LoginLimit, Window: cfg.RateWindow, RefundSuccess: true},
		ratelimit.CategoryAdmin:   {Limit: cfg.AdminLimit, Window: cfg.RateWindow},
		ratelimit.CategoryGeneral: {Limit: cfg.GeneralLimit, Window: cfg.RateWindow},
	}, nil)
	classifier := ratelimit.Classifier{
		LoginPaths:    utils.SplitList(cfg.LoginPaths),
		AdminPrefixes: utils.SplitList(cfg.AdminPrefixes),
	}

	a.Cache = a.buildCache(cfg, logger)

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		a.Calendar = calendar.NewMaintainer(calendar.Options{
			DB:            appDB,
			Refresher:     calendar.NewGoogleRefresher(cfg.GoogleClientID, cfg.GoogleClientSecret),
			Events:        a.Events,
			Logger:        logger,
			RefreshWindow: cfg.CalendarRefreshWindow,
			MaxFailures:   cfg.CalendarMaxFailures,
		})
	} else {
		logger.Info("GOOGLE_CLIENT_ID not set, calendar token maintenance disabled")
	}

	upstream, err := proxy.New(proxy.Options{
		Upstream:   cfg.UpstreamURL,
		LoginPaths: classifier.LoginPaths,
		Events:     a.Events,
		Logger:     logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("upstream: %w", err)
	}
	if !upstream.Configured() {
		logger.Warn("UPSTREAM_URL not set, only gateway routes will answer")
	}

	mon := monitor.New(cfg.PerfBufferSize, cfg.PerfSlowThreshold)
	a.Router, err = NewRouter(Deps{
		Logger:         logger,
		CORSOrigins:    utils.SplitList(cfg.CORSOrigins),
		TrustedProxies: utils.SplitList(cfg.TrustedProxies),
		Metrics:        metrics,
		Monitor:        mon,
		Events:         a.Events,
		Limiter:        a.Limiter,
		Classifier:     classifier,
		Cache:          a.Cache,
		Proxy:          upstream,
		Auth:           auth.NewHandler(gatewayDB, cfg.JWTSecret, cfg.JWTTTL, a.Events, logger),
		Admin: &admin.Handler{
			Monitor:  mon,
			Events:   a.Events,
			Limiter:  a.Limiter,
			Cache:    a.Cache,
			Calendar: a.Calendar,
			Logger:   logger.Named("admin"),
		},
		Reports: &reports.Handler{Events: a.Events},
		Health:  &health.Handler{DB: gatewayDB, Upstream: upstream.Upstream(), Logger: logger},
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Scheduler = scheduler.New(logger, 5*time.Minute)
	err = a.Scheduler.Register(scheduler.Jobs{
		RateLimits:       a.Limiter,
		Cache:            a.Cache,
		Calendar:         a.Calendar,
		CalendarSchedule: cfg.CalendarMaintenanceSchedule,
		Events:           a.Events,
		Retention:        cfg.SecurityEventRetention,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func buildSinks(cfg *utils.Config, logger *zap.Logger) ([]security.Sink, error) {
	var sinks []security.Sink

	if cfg.SecurityWebhookURL != "" {
		threshold, err := security.ParseSeverity(cfg.SecurityWebhookMinSeverity)
		if err != nil {
			return nil, fmt.Errorf("SECURITY_WEBHOOK_MIN_SEVERITY: %w", err)
		}
		sinks = append(sinks, security.NewWebhookSink(cfg.SecurityWebhookURL, cfg.SecurityWebhookSecret, threshold))
	}

	if to := utils.SplitList(cfg.AlertEmailTo); len(to) > 0 {
		threshold, err := security.ParseSeverity(cfg.AlertEmailMinSeverity)
		if err != nil {
			return nil, fmt.Errorf("ALERT_EMAIL_MIN_SEVERITY: %w", err)
		}
		mailer, err := utils.NewMailer(cfg)
		if err != nil {
			logger.Warn("Alert email disabled", zap.Error(err))
		} else {
			sinks = append(sinks, &security.EmailSink{Mailer: mailer, To: to, Min: threshold})
		}
	}

	for _, s := range sinks {
		logger.Info("Security sink enabled", zap.String("sink", s.Name()), zap.String("min_severity", s.MinSeverity().String()))
	}
	return sinks, nil
}

func (a *App) buildCache(cfg *utils.Config, logger *zap.Logger) *cache.Cache {
	opts := cache.Options{
		Prefixes:      utils.SplitList(cfg.CachePrefixes),
		AdminPrefixes: utils.SplitList(cfg.CacheFlushPrefixes),
		TTL:           cfg.CacheTTL,
		Logger:        logger,
	}

	if cfg.RedisURL != "" {
		store, err := cache.NewRedisStore(cfg.RedisURL)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err = store.Ping(ctx)
			cancel()
			if err == nil {
				a.closers = append(a.closers, store.Close)
				opts.Store, opts.Backend = store, "redis"
				return cache.New(opts)
			}
			store.Close()
		}
		logger.Warn("Redis unavailable, falling back to the in-memory cache", zap.Error(err))
	}

	opts.Store, opts.Backend = cache.NewMemoryStore(cfg.CacheMaxEntries, nil), "memory"
	return cache.New(opts)
}

// Close releases resources in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
	a.closers = nil
}

func closeDatabases(gatewayDB, appDB *gorm.DB) error {
	sqlDB, err := gatewayDB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	if appDB == gatewayDB {
		return nil
	}
	appSQL, err := appDB.DB()
	if err != nil {
		return err
	}
	return appSQL.Close()
}
