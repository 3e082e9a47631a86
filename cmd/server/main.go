package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lysyi3m/news-comb/app/api"
	"github.com/lysyi3m/news-comb/app/cfg"
	"github.com/lysyi3m/news-comb/app/crawler"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/extractor"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/fetcher"
	"github.com/lysyi3m/news-comb/app/scheduler"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	appConfig, err := cfg.Load()
	if err != nil {
		return err
	}
	if appConfig == nil {
		// Help was shown
		return nil
	}

	setupLogger(appConfig.Debug)
	slog.Info("Starting News Comb", "version", appConfig.Version)

	if dir := filepath.Dir(appConfig.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.NewConnection(appConfig.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	sourceRepo := database.NewSourceRepository(db)
	articleRepo := database.NewArticleRepository(db)

	registry := source.NewRegistry(appConfig.SourcesDir)
	if err := registry.Run(); err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	slog.Info("Sources loaded", "dir", appConfig.SourcesDir, "count", registry.Count())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := registry.Sync(ctx, sourceRepo); err != nil {
		return fmt.Errorf("failed to sync sources: %w", err)
	}

	httpFetcher := fetcher.New(nil, appConfig.UserAgent, appConfig.FetchTimeout)
	runner := crawler.NewRunner(httpFetcher, store.New(articleRepo), extractor.New(), crawler.Config{
		SourceConcurrency:  appConfig.SourceConcurrency,
		ArticleConcurrency: appConfig.ArticleConcurrency,
		MaxErrorsPerSource: appConfig.MaxErrorsPerSource,
	})

	crawlScheduler := scheduler.NewScheduler(runner, registry, appConfig.Schedule, appConfig.RunTimeout)

	if appConfig.RunOnce {
		report, err := crawlScheduler.Trigger(ctx)
		crawlScheduler.Stop()
		if err != nil {
			return err
		}
		slog.Info("Single run finished",
			"stored", report.ArticlesStored,
			"skipped", report.ArticlesSkipped,
			"failed_sources", report.SourcesFailed,
			"errors", report.Errors)
		return nil
	}

	if err := crawlScheduler.Start(); err != nil {
		return err
	}
	defer crawlScheduler.Stop()

	handler := api.NewHandler(registry, sourceRepo, articleRepo, crawlScheduler,
		feed.NewGenerator(publicURL(appConfig), appConfig.Version))

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      api.NewServer(handler, appConfig.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: appConfig.RunTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port, "api_enabled", appConfig.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("News Comb shutdown complete")
	return nil
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func publicURL(c *cfg.Cfg) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("http://localhost:%s", c.Port)
}
