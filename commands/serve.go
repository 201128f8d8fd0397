package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/migrations"
	"github.com/blackt666/immoxx--sub004/seed"
	"github.com/blackt666/immoxx--sub004/server"
)

func ServeCmd(opts *Options) *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server and its scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if !cfg.IsDevelopment() {
				gin.SetMode(gin.ReleaseMode)
			}

			app, err := server.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if !skipMigrate {
				if err := migrations.MigrateAll(app.GatewayDB, app.AppDB); err != nil {
					return err
				}
				if err := seed.SeedAdmin(app.GatewayDB, logger, cfg.AdminEmail, cfg.AdminPassword); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           app.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			app.Scheduler.Start()
			errCh := make(chan error, 1)
			go func() {
				logger.Info("Gateway listening", zap.String("addr", srv.Addr), zap.String("upstream", cfg.UpstreamURL))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				logger.Info("Shutting down")
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP shutdown incomplete", zap.Error(err))
			}
			if err := app.Scheduler.Stop(shutdownCtx); err != nil {
				logger.Warn("Scheduled jobs still running at shutdown", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not migrate tables or seed the admin at startup")
	return cmd
}
