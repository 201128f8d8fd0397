// Package calendar keeps the OAuth tokens of the site's calendar connections
// fresh so that calendar sync never runs with an expired token.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
	"github.com/blackt666/immoxx--sub004/security"
)

var ErrAlreadyRunning = errors.New("calendar maintenance already running")

type Options struct {
	DB            *gorm.DB
	Refresher     Refresher
	Events        security.Emitter
	Logger        *zap.Logger
	RefreshWindow time.Duration
	MaxFailures   int
	Concurrency   int
	Now           func() time.Time
}

type Report struct {
	StartedAt   time.Time `json:"started_at"`
	Duration    string    `json:"duration"`
	Checked     int       `json:"checked"`
	Refreshed   int       `json:"refreshed"`
	Failed      int       `json:"failed"`
	Deactivated int       `json:"deactivated"`
}

type Maintainer struct {
	db          *gorm.DB
	refresher   Refresher
	events      security.Emitter
	logger      *zap.Logger
	window      time.Duration
	maxFailures int
	concurrency int
	now         func() time.Time

	running sync.Mutex
}

func NewMaintainer(opts Options) *Maintainer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RefreshWindow <= 0 {
		opts.RefreshWindow = 10 * time.Minute
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Maintainer{
		db:          opts.DB,
		refresher:   opts.Refresher,
		events:      opts.Events,
		logger:      opts.Logger.Named("calendar"),
		window:      opts.RefreshWindow,
		maxFailures: opts.MaxFailures,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// Due lists active Google connections whose token expires inside the window.
func (m *Maintainer) Due(ctx context.Context) ([]models.CalendarConnection, error) {
	cutoff := m.now().Add(m.window)

	var conns []models.CalendarConnection
	err := m.db.WithContext(ctx).
		Where("provider = ? AND active = ?", models.CalendarProviderGoogle, true).
		Where("token_expiry IS NULL OR token_expiry < ?", cutoff).
		Order("id").
		Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("load calendar connections: %w", err)
	}
	return conns, nil
}

// RunMaintenance refreshes every due connection. Only one run happens at a time.
func (m *Maintainer) RunMaintenance(ctx context.Context) (Report, error) {
	if !m.running.TryLock() {
		return Report{}, ErrAlreadyRunning
	}
	defer m.running.Unlock()

	start := m.now()
	report := Report{StartedAt: start}

	conns, err := m.Due(ctx)
	if err != nil {
		return report, err
	}
	report.Checked = len(conns)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			refreshed, deactivated, err := m.refreshOne(gctx, conn)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case refreshed:
				report.Refreshed++
			case deactivated:
				report.Failed++
				report.Deactivated++
			default:
				report.Failed++
			}
			return nil
		})
	}
	err = g.Wait()
	report.Duration = time.Since(start).Round(time.Millisecond).String()

	if report.Checked > 0 {
		m.logger.Info("Calendar token maintenance finished",
			zap.Int("checked", report.Checked),
			zap.Int("refreshed", report.Refreshed),
			zap.Int("failed", report.Failed),
			zap.Int("deactivated", report.Deactivated))
	}
	return report, err
}

// refreshOne only returns an error when the database write fails.
func (m *Maintainer) refreshOne(ctx context.Context, conn models.CalendarConnection) (refreshed bool, deactivated bool, err error) {
	tok, refreshErr := m.refresher.Refresh(ctx, conn)
	now := m.now()

	if refreshErr == nil {
		updates := map[string]interface{}{
			"access_token":      tok.AccessToken,
			"failure_count":     0,
			"last_error":        "",
			"last_refreshed_at": now,
		}
		if tok.RefreshToken != "" {
			updates["refresh_token"] = tok.RefreshToken
		}
		if !tok.Expiry.IsZero() {
			updates["token_expiry"] = tok.Expiry
		}
		if err := m.update(ctx, conn.ID, updates); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	failures := conn.FailureCount + 1
	updates := map[string]interface{}{
		"failure_count": failures,
		"last_error":    refreshErr.Error(),
	}
	deactivated = failures >= m.maxFailures
	if deactivated {
		updates["active"] = false
	}
	if err := m.update(ctx, conn.ID, updates); err != nil {
		return false, false, err
	}

	m.report(ctx, conn, failures, deactivated, refreshErr)
	return false, deactivated, nil
}

func (m *Maintainer) update(ctx context.Context, id uint, updates map[string]interface{}) error {
	err := m.db.WithContext(ctx).Model(&models.CalendarConnection{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update calendar connection %d: %w", id, err)
	}
	return nil
}

func (m *Maintainer) report(ctx context.Context, conn models.CalendarConnection, failures int, deactivated bool, cause error) {
	if m.events == nil {
		m.logger.Warn("Calendar token refresh failed", zap.Uint("connection_id", conn.ID), zap.Error(cause))
		return
	}

	e := security.Event{
		Type:     security.EventCalendarRefreshFailed,
		Severity: security.SeverityLow,
		Message:  "Calendar token refresh failed",
		Details: map[string]interface{}{
			"connection_id": conn.ID,
			"user_id":       conn.UserID,
			"account_email": conn.AccountEmail,
			"failures":      failures,
			"error":         cause.Error(),
		},
	}
	if deactivated {
		e.Type = security.EventCalendarDeactivated
		e.Severity = security.SeverityMedium
		e.Message = "Calendar connection deactivated after repeated refresh failures"
	}
	m.events.Emit(ctx, e)
}

// List returns connections for the admin API, newest first.
func (m *Maintainer) List(ctx context.Context, provider string, activeOnly bool) ([]models.CalendarConnection, error) {
	tx := m.db.WithContext(ctx).Model(&models.CalendarConnection{})
	if provider != "" {
		tx = tx.Where("provider = ?", provider)
	}
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}

	var conns []models.CalendarConnection
	if err := tx.Order("id DESC").Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("list calendar connections: %w", err)
	}
	return conns, nil
}
