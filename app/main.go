package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-keep/app/api"
	"github.com/lysyi3m/rss-keep/app/cfg"
	"github.com/lysyi3m/rss-keep/app/database"
	"github.com/lysyi3m/rss-keep/app/feed"
	feedsync "github.com/lysyi3m/rss-keep/app/sync"
	"github.com/lysyi3m/rss-keep/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RSS Keep server", "version", appCfg.Version)

	pool, err := database.Open(appCfg.DBPath, appCfg.MaxConnections)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Database ready", "path", appCfg.DBPath, "max_connections", appCfg.MaxConnections)

	feedRepo := database.NewFeedRepository(pool)
	articleRepo := database.NewArticleRepository(pool)
	categoryRepo := database.NewCategoryRepository(pool)
	tagRepo := database.NewTagRepository(pool)

	seeds, err := feed.LoadSeeds(appCfg.FeedsDir)
	if err != nil {
		slog.Error("Failed to load seed files", "dir", appCfg.FeedsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded seed files", "dir", appCfg.FeedsDir, "count", len(seeds))

	httpClient := &http.Client{}
	parser := feed.NewParser()
	contentExtractor := feed.NewContentExtractor()

	engine := feedsync.NewEngine(feedRepo, articleRepo, parser, httpClient,
		appCfg.UserAgent,
		time.Duration(appCfg.FetchTimeout)*time.Second,
		time.Hour)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(engine, feedRepo, articleRepo, categoryRepo,
		contentExtractor, httpClient, seeds)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(feedRepo, articleRepo, categoryRepo, tagRepo, engine, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}
