package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/api"
	"github.com/sells-group/habitability/internal/locate"
	"github.com/sells-group/habitability/internal/reportcache"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP scoring API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initQueryEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		// Warm the cache so a broken dataset fails at startup.
		if _, err := env.Data.Snapshot(ctx); err != nil {
			return eris.Wrap(err, "serve: load dataset")
		}

		// SIGHUP reloads the dataset, e.g. after `habitability import`.
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					snap, err := env.Data.Reload(ctx)
					if err != nil {
						zap.L().Warn("dataset reload failed, keeping previous snapshot", zap.Error(err))
						continue
					}
					zap.L().Info("dataset reloaded",
						zap.Int("points", len(snap.Points)),
						zap.Int("zones", len(snap.Zones)),
					)
				}
			}
		}()

		var opts []api.ServerOption
		if cfg.Redis.Addr != "" {
			reports, closeReports, err := reportcache.Open(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			defer closeReports() //nolint:errcheck
			opts = append(opts, api.WithReportCache(reports))
			zap.L().Info("report cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
		if cfg.GeoIP.Path != "" {
			locator, err := locate.Open(cfg.GeoIP.Path)
			if err != nil {
				return err
			}
			defer locator.Close() //nolint:errcheck
			opts = append(opts, api.WithLocator(locator))
			zap.L().Info("ip location enabled", zap.String("db", cfg.GeoIP.Path))
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(env.Evaluator, cfg.Server, env.Data, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
