package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds everything the gateway reads from the environment.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=production"`
	Port     string `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	UpstreamURL    string `env:"UPSTREAM_URL"`
	CORSOrigins    string `env:"CORS_ORIGINS"`
	TrustedProxies string `env:"TRUSTED_PROXIES"`

	DBDriver string `env:"DB_DRIVER,default=mysql"`
	DBDSN    string `env:"DB_DSN"`
	AppDBDSN string `env:"APP_DB_DSN"`

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTTTL        time.Duration `env:"JWT_TTL,default=12h"`
	AdminEmail    string        `env:"ADMIN_EMAIL"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`

	LoginPaths    string        `env:"LOGIN_PATHS"`
	AdminPrefixes string        `env:"ADMIN_PREFIXES"`
	LoginLimit    int           `env:"RATE_LIMIT_LOGIN,default=5"`
	AdminLimit    int           `env:"RATE_LIMIT_ADMIN,default=300"`
	GeneralLimit  int           `env:"RATE_LIMIT_GENERAL,default=1000"`
	RateWindow    time.Duration `env:"RATE_LIMIT_WINDOW,default=15m"`

	PerfBufferSize    int           `env:"PERF_BUFFER_SIZE,default=1000"`
	PerfSlowThreshold time.Duration `env:"PERF_SLOW_THRESHOLD,default=1s"`

	CachePrefixes      string        `env:"CACHE_PREFIXES"`
	CacheFlushPrefixes string        `env:"CACHE_FLUSH_PREFIXES,default=/api/admin"`
	CacheTTL           time.Duration `env:"CACHE_TTL,default=5m"`
	CacheMaxEntries    int           `env:"CACHE_MAX_ENTRIES,default=10000"`
	RedisURL           string        `env:"REDIS_URL"`

	SecurityWebhookURL         string        `env:"SECURITY_WEBHOOK_URL"`
	SecurityWebhookSecret      string        `env:"SECURITY_WEBHOOK_SECRET"`
	SecurityWebhookMinSeverity string        `env:"SECURITY_WEBHOOK_MIN_SEVERITY,default=high"`
	AlertEmailTo               string        `env:"ALERT_EMAIL_TO"`
	AlertEmailMinSeverity      string        `env:"ALERT_EMAIL_MIN_SEVERITY,default=critical"`
	SecurityEventRetention     time.Duration `env:"SECURITY_EVENT_RETENTION,default=720h"`

	SMTPHost   string `env:"SMTP_HOST"`
	SMTPPort   int    `env:"SMTP_PORT,default=465"`
	SMTPUser   string `env:"SMTP_USER"`
	SMTPPass   string `env:"SMTP_PASS"`
	SMTPSender string `env:"SMTP_SENDER"`

	GoogleClientID              string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret          string        `env:"GOOGLE_CLIENT_SECRET"`
	CalendarRefreshWindow       time.Duration `env:"CALENDAR_REFRESH_WINDOW,default=10m"`
	CalendarMaxFailures         int           `env:"CALENDAR_MAX_FAILURES,default=3"`
	CalendarMaintenanceSchedule string        `env:"CALENDAR_MAINTENANCE_SCHEDULE,default=@every 15m"`
}

const (
	defaultLoginPaths    = "/api/auth/login,/api/login,/gateway/api/auth/login"
	defaultAdminPrefixes = "/api/admin,/gateway/api"
	defaultCachePrefixes = "/api/properties,/api/content,/sitemap.xml"
)

// LoadConfig reads an optional .env file and decodes the environment.
func LoadConfig(envFiles ...string) (*Config, error) {
	// A missing .env is fine, variables may come from the process environment
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.LoginPaths == "" {
		cfg.LoginPaths = defaultLoginPaths
	}
	if cfg.AdminPrefixes == "" {
		cfg.AdminPrefixes = defaultAdminPrefixes
	}
	if cfg.CachePrefixes == "" {
		cfg.CachePrefixes = defaultCachePrefixes
	}
	if cfg.AppDBDSN == "" {
		cfg.AppDBDSN = cfg.DBDSN
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the gateway cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set in the environment")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is not set in the environment")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// SplitList turns a comma separated setting into trimmed, non-empty items.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
