package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/skridlevsky/review-stats/internal/api"
	"github.com/skridlevsky/review-stats/internal/collector"
	"github.com/skridlevsky/review-stats/internal/config"
	"github.com/skridlevsky/review-stats/internal/db"
	"github.com/skridlevsky/review-stats/internal/github"
	"github.com/skridlevsky/review-stats/internal/runs"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("Configuration error: DATABASE_URL is required")
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	repos, err := collector.ParseRepositories(cfg.GitHubRepos)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// NOTE: database.Close() called explicitly in shutdown sequence below, no defer

	if err := db.RunMigrations(ctx, database.Pool()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	runStore := runs.NewStore(database.Pool())

	reviewCache := github.NewReviewCache(cfg.ReviewCacheTTL)
	githubClient := github.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.GitHubHTTPTimeout, reviewCache)

	refresher, err := runs.NewRefresher(
		collector.New(githubClient, collector.LogProgress{Every: 50}),
		runStore,
		reviewCache,
		repos,
		cfg.RefreshInterval,
		cfg.RefreshLookback,
	)
	if err != nil {
		log.Fatalf("Failed to create refresher: %v", err)
	}
	refresher.Run(ctx)

	routerResult := api.NewRouter(&api.RouterConfig{
		Database:    database,
		Runs:        runStore,
		Refresher:   refresher,
		CORSOrigins: cfg.CORSOrigins,
		Development: cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routerResult.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second, // Must exceed Export handler's 30s context timeout
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	refresher.Stop()
	routerResult.RateLimiters.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	database.Close()

	slog.Info("Server exited")
}
