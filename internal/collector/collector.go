// Package collector walks the configured repositories and gathers normalized
// pull requests with their reviews, one remote call at a time.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skridlevsky/review-stats/internal/github"
	"github.com/skridlevsky/review-stats/internal/stats"
)

// ErrInvalidRepository is returned for entries not in owner/repo form
var ErrInvalidRepository = errors.New("invalid repository")

// Source is the remote platform the collector reads from
type Source interface {
	ListPullRequests(ctx context.Context, owner, repo string) ([]github.PullRequest, error)
	ListReviews(ctx context.Context, owner, repo string, number int) ([]github.Review, error)
}

// RateLimiter is optionally implemented by a Source
type RateLimiter interface {
	GetRateLimit(ctx context.Context) (*github.RateLimit, error)
}

// Repository is one owner/repo pair to scan
type Repository struct {
	Owner string
	Repo  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Repo
}

// ParseRepositories parses "owner/repo" entries, preserving order
func ParseRepositories(entries []string) ([]Repository, error) {
	repos := make([]Repository, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: %q (expected owner/repo)", ErrInvalidRepository, entry)
		}
		repos = append(repos, Repository{Owner: parts[0], Repo: parts[1]})
	}
	return repos, nil
}

const (
	rateLimitCheckEvery = 50
	rateLimitFloor      = 100
)

// Collector fetches pull requests and reviews sequentially
type Collector struct {
	source   Source
	progress Progress
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a collector. progress may be nil.
func New(source Source, progress Progress) *Collector {
	if progress == nil {
		progress = ProgressFunc(func(int, int, string) {})
	}
	return &Collector{
		source:   source,
		progress: progress,
		sleep:    sleepCtx,
	}
}

// Collect returns every PR admitted by the window across repos, each with
// all of its reviews. Any fetch or normalization error aborts the whole run.
func (c *Collector) Collect(ctx context.Context, repos []Repository, w stats.Window) ([]stats.PullRequest, error) {
	var all []stats.PullRequest
	fetched := 0

	for i, repo := range repos {
		raw, err := c.source.ListPullRequests(ctx, repo.Owner, repo.Repo)
		if err != nil {
			return nil, err
		}

		prs := make([]stats.PullRequest, 0, len(raw))
		for j := range raw {
			if !w.Admits(stats.PRState(raw[j].State), raw[j].CreatedAt) {
				continue
			}
			pr, err := stats.NormalizePullRequest(repo.Owner, repo.Repo, &raw[j])
			if err != nil {
				return nil, err
			}
			prs = append(prs, pr)
		}

		slog.Debug("Pull requests listed",
			"repo", repo.String(),
			"listed", len(raw),
			"kept", len(prs),
		)
		c.progress.Report(i+1, len(repos), repo.String())

		for j := range prs {
			pr := &prs[j]
			rawReviews, err := c.source.ListReviews(ctx, pr.Owner, pr.Repo, pr.Number)
			if err != nil {
				return nil, err
			}

			for k := range rawReviews {
				rv, err := stats.NormalizeReview(&rawReviews[k])
				if err != nil {
					return nil, fmt.Errorf("%s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
				}
				pr.Reviews = append(pr.Reviews, rv)
			}

			c.progress.Report(j+1, len(prs), fmt.Sprintf("%s#%d", repo, pr.Number))

			fetched++
			if fetched%rateLimitCheckEvery == 0 {
				if err := c.checkRateLimit(ctx); err != nil {
					return nil, err
				}
			}
		}

		all = append(all, prs...)
	}

	if all == nil {
		all = []stats.PullRequest{}
	}
	return all, nil
}

// checkRateLimit waits for the reset when few calls remain.
// Only context cancellation is treated as an error.
func (c *Collector) checkRateLimit(ctx context.Context) error {
	rl, ok := c.source.(RateLimiter)
	if !ok {
		return nil
	}

	rateLimit, err := rl.GetRateLimit(ctx)
	if err != nil {
		slog.Warn("Failed to check rate limit", "error", err)
		return nil
	}

	slog.Info("Rate limit",
		"remaining", rateLimit.Remaining,
		"limit", rateLimit.Limit,
		"reset", rateLimit.Reset.Format("15:04:05"),
	)

	if rateLimit.Remaining < rateLimitFloor {
		wait := time.Until(rateLimit.Reset).Round(time.Second)
		if wait > 0 {
			slog.Warn("Rate limit low, waiting for reset", "sleep", wait)
			return c.sleep(ctx, wait+5*time.Second)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
