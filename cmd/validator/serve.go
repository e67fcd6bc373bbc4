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

	"payment_validator/internal/api"
	"payment_validator/internal/config"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation API and metrics",
		Long: `Start the HTTP API and the Prometheus metrics endpoint.

SIGHUP reloads the policy file; SIGINT or SIGTERM shut down gracefully.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	seedPath, _ := cmd.Flags().GetString("seed")

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger := setupLogger(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)
	logger.Info("Starting application", slog.String("version", Version))

	a, err := newApp(cmd.Context(), cfg, seedPath, logger)
	if err != nil {
		return err
	}

	handler := api.NewAPIHandler(a.processor, cfg.RequestTimeout, logger)
	metricsServer := a.metrics.StartMetricsServer(cfg.MetricsAddr)
	httpServer := startHTTPServer(cfg.HTTPAddr, api.NewRouter(handler), cfg.RequestTimeout, logger)

	waitForShutdown(a, httpServer, metricsServer)
	logger.Info("Application shutdown complete")
	return nil
}

func startHTTPServer(addr string, handler http.Handler, requestTimeout time.Duration, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(a *app, httpServer, metricsServer *http.Server) {
	logger := a.logger
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigs {
		if sig != syscall.SIGHUP {
			logger.Info("Shutdown signal received", slog.String("signal", sig.String()))
			break
		}
		if err := a.policies.Reload(); err != nil {
			logger.Error("Policy reload failed, keeping current policy", slog.String("error", err.Error()))
			continue
		}
		logger.Info("Policy reloaded", slog.Int("version", a.policies.Current().Version))
	}
	signal.Stop(sigs)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := a.close(ctx); err != nil {
		logger.Error("Component shutdown failed", slog.String("error", err.Error()))
	}
}
