package runs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skridlevsky/review-stats/internal/collector"
	"github.com/skridlevsky/review-stats/internal/stats"
)

// Collector fetches normalized pull requests for a window
type Collector interface {
	Collect(ctx context.Context, repos []collector.Repository, w stats.Window) ([]stats.PullRequest, error)
}

// Saver persists a finished report
type Saver interface {
	SaveRun(ctx context.Context, rep stats.Report, repositories []string) (*Run, error)
}

// CacheCleaner drops expired entries from a response cache
type CacheCleaner interface {
	CleanExpired() int
}

// Refresher periodically recomputes stats over a trailing window and saves them
type Refresher struct {
	collector Collector
	saver     Saver
	cache     CacheCleaner
	repos     []collector.Repository
	interval  time.Duration
	lookback  time.Duration
	now       func() time.Time

	// refreshMu serializes refreshes
	refreshMu sync.Mutex

	// Status tracking for health endpoint
	lastRun    time.Time
	lastRunID  string
	lastStatus string
	statusMu   sync.RWMutex

	// Lifecycle
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRefresher creates a refresher. cache may be nil.
func NewRefresher(
	c Collector,
	saver Saver,
	cache CacheCleaner,
	repos []collector.Repository,
	interval, lookback time.Duration,
) (*Refresher, error) {
	if len(repos) == 0 {
		return nil, fmt.Errorf("%w: no repositories configured", collector.ErrInvalidRepository)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("refresh lookback must be positive, got %s", lookback)
	}

	return &Refresher{
		collector:  c,
		saver:      saver,
		cache:      cache,
		repos:      repos,
		interval:   interval,
		lookback:   lookback,
		now:        time.Now,
		lastStatus: "pending",
		stopCh:     make(chan struct{}),
	}, nil
}

// Run starts the refresh loop. The first refresh happens immediately.
func (r *Refresher) Run(ctx context.Context) {
	slog.Info("Refresher starting",
		"repositories", len(r.repos),
		"interval", r.interval,
		"lookback", r.lookback,
	)

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop shuts down the refresher and waits for an in-flight refresh.
// Safe to call multiple times.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		slog.Info("Refresher stopping...")
		close(r.stopCh)
		r.wg.Wait()
		slog.Info("Refresher stopped")
	})
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Stop must interrupt a refresh that is waiting on the API
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.RefreshOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.RefreshOnce(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RefreshOnce collects, aggregates and saves one run over [now-lookback, now).
// Concurrent calls wait for each other.
func (r *Refresher) RefreshOnce(ctx context.Context) (*Run, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	started := r.now().UTC()
	r.setStatus(started, "", "running")

	if r.cache != nil {
		if n := r.cache.CleanExpired(); n > 0 {
			slog.Debug("Review cache cleaned", "expired", n)
		}
	}

	w := stats.Window{From: started.Add(-r.lookback), To: started}

	prs, err := r.collector.Collect(ctx, r.repos, w)
	if err != nil {
		slog.Error("Refresh failed", "window", w.String(), "error", err)
		r.setStatus(started, "", "error: "+err.Error())
		return nil, fmt.Errorf("collect: %w", err)
	}

	rep := stats.BuildReport(prs, w)

	names := make([]string, len(r.repos))
	for i, repo := range r.repos {
		names[i] = repo.String()
	}

	run, err := r.saver.SaveRun(ctx, rep, names)
	if err != nil {
		slog.Error("Failed to save run", "window", w.String(), "error", err)
		r.setStatus(started, "", "error: "+err.Error())
		return nil, fmt.Errorf("save run: %w", err)
	}

	slog.Info("Refresh complete",
		"run_id", run.ID,
		"pull_requests", rep.PullRequests,
		"rows", len(rep.Detailed),
		"duration", time.Since(started).Round(time.Millisecond),
	)
	r.setStatus(started, run.ID, "ok")
	return run, nil
}

func (r *Refresher) setStatus(at time.Time, runID, status string) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()

	r.lastRun = at
	if runID != "" {
		r.lastRunID = runID
	}
	r.lastStatus = status
}

// RefresherStatus represents the refresher state
type RefresherStatus struct {
	LastRun    time.Time
	LastRunID  string
	LastStatus string
}

// Status returns the current refresher state
func (r *Refresher) Status() *RefresherStatus {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()

	return &RefresherStatus{
		LastRun:    r.lastRun,
		LastRunID:  r.lastRunID,
		LastStatus: r.lastStatus,
	}
}
