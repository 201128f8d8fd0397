package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/calendar"
	"github.com/blackt666/immoxx--sub004/scheduler"
	"github.com/blackt666/immoxx--sub004/server"
)

var errCalendarNotConfigured = errors.New("calendar maintenance needs GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")

// MaintainCmd runs the scheduled housekeeping once, for use from an external
// cron or by hand.
func MaintainCmd(opts *Options) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Refresh expiring calendar tokens and purge old security events once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			app, err := server.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			var events scheduler.Purger
			if purge {
				events = app.Events
			}
			return maintain(cmd.Context(), cmd.OutOrStdout(), logger, app.Calendar, events, cfg.SecurityEventRetention)
		},
	}
	cmd.Flags().BoolVar(&purge, "purge-events", true, "also delete security events older than SECURITY_EVENT_RETENTION")
	return cmd
}

// maintain purges events when asked, then refreshes calendar tokens. A
// missing calendar setup only fails the run when there was nothing else to do.
func maintain(ctx context.Context, out io.Writer, logger *zap.Logger, cal *calendar.Maintainer, events scheduler.Purger, retention time.Duration) error {
	if events != nil {
		n, err := events.Purge(ctx, retention)
		if err != nil {
			return err
		}
		logger.Info("Purged old security events", zap.Int64("removed", n))
	}

	if cal == nil {
		if events == nil {
			return errCalendarNotConfigured
		}
		logger.Warn("Calendar maintenance skipped", zap.Error(errCalendarNotConfigured))
		return nil
	}

	report, err := cal.RunMaintenance(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
