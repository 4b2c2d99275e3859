package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/nse-scanner/internal/server"
	"github.com/ahmethakanbesel/nse-scanner/internal/universe"
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the HTTP API",
	Annotations: map[string]string{annotationLogs: "stdout"},
	RunE:        runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	// Root context: cancelled on SIGINT/SIGTERM so running scans and open
	// streams stop promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return err
	}
	defer func() { _ = a.Close() }()

	status := a.tokens.Status(rootCtx)
	slog.Info("token status", "valid", status.Valid, "message", status.Message)

	universes := universe.NewNSE(
		universe.WithTTL(cfg.UniverseTTL),
		universe.WithMetrics(a.metrics),
	)
	scanSvc := a.scanService(rootCtx, universes)

	// Expired jobs are evicted on a schedule as well as after each scan.
	c := cron.New()
	if err := a.jobs.ScheduleCleanup(c, cfg.JobCleanupSchedule); err != nil {
		return err
	}
	c.Start()

	go a.preload(rootCtx)

	srv := server.New(rootCtx, cfg.Port, server.Deps{
		Scans:       scanSvc,
		Jobs:        a.jobs,
		Tokens:      a.tokens,
		Gatherer:    a.registry,
		CORSOrigins: cfg.CORSOrigins,
	})

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server started", "port", cfg.Port, "provider", a.source.Name())
	select {
	case <-done:
	case err := <-errCh:
		slog.Error("server error", "error", err)
		<-c.Stop().Done()
		return err
	}

	// Cancel root context first so running scans begin winding down
	// immediately.
	rootCancel()
	<-c.Stop().Done()

	// Then drain connections with a deadline.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}
