package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvparse/internal/core"
	"github.com/JonMunkholm/csvparse/internal/schema"
	"github.com/JonMunkholm/csvparse/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload and conversion HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rec  core.Recorder
		runs web.RunLister
	)
	if cfg.Database.Enabled() {
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		rec, runs = st, st
	} else {
		slog.Info("DATABASE_URL not set, conversions will not be recorded")
	}

	service := core.NewService(cfg, rec)
	server := web.NewServer(cfg.Server, service, runs)

	slog.Info("schemas registered", "count", schema.Count(), "names", schema.Names())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for conversions to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown did not complete in time", "error", err)
			return err
		}
		slog.Info("server stopped")
		return nil
	})

	return g.Wait()
}
