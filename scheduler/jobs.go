package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/calendar"
)

type Sweeper interface {
	Sweep() int
}

type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// Jobs holds the collaborators the housekeeping jobs act on. Nil fields
// leave the matching job unregistered.
type Jobs struct {
	RateLimits       Sweeper
	Cache            Sweeper
	Calendar         *calendar.Maintainer
	CalendarSchedule string
	Events           Purger
	Retention        time.Duration
}

// Register adds every configured job to s.
func (s *Scheduler) Register(j Jobs) error {
	if j.RateLimits != nil {
		if err := s.Add("ratelimit-sweep", "@every 1m", SweepJob(s.logger, "rate limit entries", j.RateLimits)); err != nil {
			return err
		}
	}
	if j.Cache != nil {
		if err := s.Add("cache-sweep", "@every 1m", SweepJob(s.logger, "cache entries", j.Cache)); err != nil {
			return err
		}
	}
	if j.Calendar != nil && j.CalendarSchedule != "" {
		if err := s.Add("calendar-maintenance", j.CalendarSchedule, CalendarJob(j.Calendar)); err != nil {
			return err
		}
	}
	if j.Events != nil && j.Retention > 0 {
		if err := s.Add("security-event-purge", "@daily", PurgeJob(s.logger, j.Events, j.Retention)); err != nil {
			return err
		}
	}
	return nil
}

func SweepJob(logger *zap.Logger, what string, sw Sweeper) Job {
	return func(context.Context) error {
		if n := sw.Sweep(); n > 0 {
			logger.Debug("Swept expired "+what, zap.Int("removed", n))
		}
		return nil
	}
}

func CalendarJob(m *calendar.Maintainer) Job {
	return func(ctx context.Context) error {
		_, err := m.RunMaintenance(ctx)
		if errors.Is(err, calendar.ErrAlreadyRunning) {
			return nil
		}
		return err
	}
}

func PurgeJob(logger *zap.Logger, p Purger, retention time.Duration) Job {
	return func(ctx context.Context) error {
		n, err := p.Purge(ctx, retention)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("Purged old security events", zap.Int64("removed", n))
		}
		return nil
	}
}
