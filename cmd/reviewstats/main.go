package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/skridlevsky/review-stats/internal/collector"
	"github.com/skridlevsky/review-stats/internal/config"
	"github.com/skridlevsky/review-stats/internal/db"
	"github.com/skridlevsky/review-stats/internal/github"
	"github.com/skridlevsky/review-stats/internal/report"
	"github.com/skridlevsky/review-stats/internal/runs"
	"github.com/skridlevsky/review-stats/internal/stats"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("reviewstats: %v", err)
	}
}

// options are the resolved command line settings
type options struct {
	repos  []collector.Repository
	window stats.Window
	out    string
}

func parseOptions(cfg *config.Config, args []string) (*options, error) {
	fs := flag.NewFlagSet("reviewstats", flag.ContinueOnError)
	from := fs.String("from", "", "window start, YYYY-MM-DD or RFC3339 (exclusive)")
	to := fs.String("to", "", "window end, YYYY-MM-DD or RFC3339 (exclusive)")
	out := fs.String("out", cfg.OutputPath, "write detailed rows as JSON to this file")
	repoList := fs.String("repos", "", "comma separated owner/repo list")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	dateFrom, dateTo := cfg.DateFrom, cfg.DateTo
	if *from != "" {
		t, err := config.ParseDate(*from)
		if err != nil {
			return nil, fmt.Errorf("-from: %w", err)
		}
		dateFrom = t
	}
	if *to != "" {
		t, err := config.ParseDate(*to)
		if err != nil {
			return nil, fmt.Errorf("-to: %w", err)
		}
		dateTo = t
	}
	if dateFrom.IsZero() || dateTo.IsZero() {
		return nil, errors.New("date window is required (-from/-to or DATE_FROM/DATE_TO)")
	}

	w, err := stats.NewWindow(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	entries := cfg.GitHubRepos
	if *repoList != "" {
		entries = config.SplitList(*repoList)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: none configured (-repos or GITHUB_REPOS)", collector.ErrInvalidRepository)
	}
	repos, err := collector.ParseRepositories(entries)
	if err != nil {
		return nil, err
	}

	return &options{repos: repos, window: w, out: *out}, nil
}

// run collects, aggregates and prints one report. Nothing is printed
// unless every fetch succeeds.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	opts, err := parseOptions(cfg, args)
	if err != nil {
		return err
	}

	// No review cache: every run sees fresh data
	githubClient := github.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.GitHubHTTPTimeout, nil)
	c := collector.New(githubClient, collector.LogProgress{Every: 10})

	slog.Info("Collecting pull requests",
		"repositories", len(opts.repos),
		"window", opts.window.String(),
	)
	start := time.Now()

	prs, err := c.Collect(ctx, opts.repos, opts.window)
	if err != nil {
		return fmt.Errorf("failed to collect pull requests: %w", err)
	}
	slog.Info("Collection complete", "pull_requests", len(prs), "duration", time.Since(start).Round(time.Millisecond))

	rep := stats.BuildReport(prs, opts.window)

	if err := report.WriteTables(stdout, rep); err != nil {
		return err
	}

	if opts.out != "" {
		if err := report.SaveJSON(opts.out, rep.Detailed); err != nil {
			slog.Error("Failed to save detailed stats", "path", opts.out, "error", err)
		} else {
			slog.Info("Detailed stats saved", "path", opts.out, "rows", len(rep.Detailed))
		}
	}

	if cfg.DatabaseURL != "" {
		if err := saveRun(ctx, cfg.DatabaseURL, rep, opts.repos); err != nil {
			slog.Error("Failed to store run", "error", err)
		}
	}

	return nil
}

func saveRun(ctx context.Context, databaseURL string, rep stats.Report, repos []collector.Repository) error {
	database, err := db.NewPostgres(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, database.Pool()); err != nil {
		return err
	}

	names := make([]string, len(repos))
	for i, r := range repos {
		names[i] = r.String()
	}

	run, err := runs.NewStore(database.Pool()).SaveRun(ctx, rep, names)
	if err != nil {
		return err
	}
	slog.Info("Run stored", "run_id", run.ID, "rows", run.Rows)
	return nil
}
