// Package main is the entrypoint for the doorbell console, a small HTTP
// server an operator uses to ring the doorbell (send DoorbellPress events to
// the Alexa Event Gateway) and to renew the LWA token those events need.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kvsdoorbell/internal/config"
	"kvsdoorbell/internal/console"
	"kvsdoorbell/internal/external"
	"kvsdoorbell/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// The console takes its credentials from the forms, so no SecretProvider
	// is needed unless the operator points an _SSM_PARAM at something.
	var provider config.SecretProvider
	if region := os.Getenv("AWS_REGION"); region != "" {
		provider = config.NewSSMProvider(region)
	}
	cfg, err := config.LoadConsoleConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("doorbell console starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Port,
	)

	srv, err := newServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return runHTTPServer(srv, cfg, logger)
}

// newServer wires the gateway and LWA clients into a mounted console server.
func newServer(cfg *config.ConsoleConfig, logger *slog.Logger) (*console.Server, error) {
	gateway := external.NewGatewayClient(&http.Client{Timeout: cfg.Gateway.Timeout})
	lwa := external.NewLWAClient(&http.Client{Timeout: cfg.TokenTimeout}, external.LWAConfig{
		TokenURL: cfg.TokenURL,
	})

	srv, err := console.NewServer(cfg, console.Deps{
		Events: gateway,
		Tokens: lwa,
		Logger: logger,
		Clock:  types.RealClock{},
	})
	if err != nil {
		return nil, err
	}
	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves until SIGINT/SIGTERM, then shuts down gracefully.
func runHTTPServer(srv *console.Server, cfg *config.ConsoleConfig, logger *slog.Logger) error {
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
