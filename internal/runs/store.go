// Package runs persists completed aggregation runs and keeps them fresh.
package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skridlevsky/review-stats/internal/stats"
)

// ErrRunNotFound is returned when no run matches the lookup
var ErrRunNotFound = errors.New("run not found")

// Run is the metadata of one stored aggregation
type Run struct {
	ID           string    `json:"id"`
	DateFrom     time.Time `json:"dateFrom"`
	DateTo       time.Time `json:"dateTo"`
	Repositories []string  `json:"repositories"`
	PullRequests int       `json:"pullRequests"`
	Rows         int       `json:"rows"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// Window returns the reporting window of the run
func (r *Run) Window() stats.Window {
	return stats.Window{From: r.DateFrom, To: r.DateTo}
}

// RowFilter narrows detailed rows; empty fields match everything
type RowFilter struct {
	Owner  string
	Repo   string
	Author string
}

// Store provides database operations for runs
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new run store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveRun stores the report's detailed rows under a new run id.
// Summaries are not stored; they are derived from the rows on read.
func (s *Store) SaveRun(ctx context.Context, rep stats.Report, repositories []string) (*Run, error) {
	id := uuid.New()
	run := &Run{
		ID:           id.String(),
		DateFrom:     rep.Window.From,
		DateTo:       rep.Window.To,
		Repositories: repositories,
		PullRequests: rep.PullRequests,
		Rows:         len(rep.Detailed),
		GeneratedAt:  rep.GeneratedAt,
	}
	if run.Repositories == nil {
		run.Repositories = []string{}
	}
	if run.GeneratedAt.IsZero() {
		run.GeneratedAt = time.Now().UTC()
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO stat_runs (id, date_from, date_to, repositories, pull_requests, generated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, run.DateFrom, run.DateTo, run.Repositories, run.PullRequests, run.GeneratedAt)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		if len(rep.Detailed) == 0 {
			return nil
		}

		rows := make([][]interface{}, len(rep.Detailed))
		for i, d := range rep.Detailed {
			rows[i] = []interface{}{id, d.Owner, d.Repo, d.Author, d.Created, d.Commented, d.Approved}
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"detailed_stats"},
			[]string{"run_id", "owner", "repo", "author", "created", "commented", "approved"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy detailed stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return run, nil
}

// runColumns is the standard column list for run queries
const runColumns = `r.id::text, r.date_from, r.date_to, r.repositories, r.pull_requests, r.generated_at,
			(SELECT COUNT(*) FROM detailed_stats d WHERE d.run_id = r.id)`

func scanRun(row pgx.Row) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID, &run.DateFrom, &run.DateTo, &run.Repositories,
		&run.PullRequests, &run.GeneratedAt, &run.Rows,
	)
	return run, err
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM stat_runs r ORDER BY r.generated_at DESC LIMIT $1`, runColumns)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by id
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	query := fmt.Sprintf(`SELECT %s FROM stat_runs r WHERE r.id = $1`, runColumns)
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun retrieves the most recently generated run
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM stat_runs r ORDER BY r.generated_at DESC LIMIT 1`, runColumns)
	run, err := scanRun(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// DetailedStats returns the stored rows of a run ordered by owner, repo, author
func (s *Store) DetailedStats(ctx context.Context, runID string, filter RowFilter) ([]stats.DetailedStatRow, error) {
	query := `SELECT owner, repo, author, created, commented, approved FROM detailed_stats WHERE run_id = $1`
	args := []interface{}{runID}
	argPos := 2

	if filter.Owner != "" {
		query += fmt.Sprintf(" AND owner = $%d", argPos)
		args = append(args, filter.Owner)
		argPos++
	}
	if filter.Repo != "" {
		query += fmt.Sprintf(" AND repo = $%d", argPos)
		args = append(args, filter.Repo)
		argPos++
	}
	if filter.Author != "" {
		query += fmt.Sprintf(" AND author = $%d", argPos)
		args = append(args, filter.Author)
	}
	query += " ORDER BY owner, repo, author"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detailed stats: %w", err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToStructByPos[stats.DetailedStatRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan detailed stats: %w", err)
	}
	return result, nil
}
