// Command server runs the Wanzami catalog API together with the background
// pipeline that pushes staged media to object storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/maauso/wanzami-api/internal/bootstrap"
	"github.com/maauso/wanzami-api/internal/config"
	"github.com/maauso/wanzami-api/internal/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting Wanzami API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("metadata_store", cfg.MetadataStore),
		slog.String("staging_dir", cfg.StagingDir),
		slog.Int("upload_concurrency", cfg.UploadConcurrency),
		slog.Bool("session_verification", cfg.SessionVerificationEnabled()),
	)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	stopPipeline := startPipeline(deps)
	defer stopPipeline()

	srv := newHTTPServer(cfg, deps, logger)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case sig := <-signals:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serveErr:
		return err
	}

	// Stop taking submissions before the pipeline goes away.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	// Queued and in-flight transfers live only in memory and are lost here.
	stopPipeline()
	logger.Info("server stopped gracefully")
	return nil
}

// startPipeline runs the upload worker and the reconciler until the returned
// stop function is called. stop blocks until both have returned and may be
// called more than once.
func startPipeline(deps *bootstrap.Dependencies) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		deps.Worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		deps.Reconciler.Run(ctx)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// newHTTPServer mounts the public, account and admin routes. Read and write
// timeouts are sized for admin submissions carrying whole media files.
func newHTTPServer(cfg *config.Config, deps *bootstrap.Dependencies, logger *slog.Logger) *http.Server {
	handlers := server.NewHandlers(server.Services{
		Catalog:   deps.Content,
		Publisher: deps.Publisher,
		Uploads:   deps.Queue,
		Accounts:  deps.Accounts,
	}, logger,
		server.WithAssetBaseURL(cfg.AssetBaseURL),
		server.WithCookieSecure(cfg.CookieSecure),
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	)

	routerCfg := server.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		AdminSecret:    cfg.AdminSecretKey,
	}
	if deps.Verifier != nil {
		routerCfg.Verifier = deps.Verifier
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.NewRouter(handlers, logger, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Minute,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
}
