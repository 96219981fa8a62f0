package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skridlevsky/review-stats/internal/report"
	"github.com/skridlevsky/review-stats/internal/runs"
	"github.com/skridlevsky/review-stats/internal/stats"
)

// RunReader reads stored runs
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]*runs.Run, error)
	GetRun(ctx context.Context, id string) (*runs.Run, error)
	LatestRun(ctx context.Context) (*runs.Run, error)
	DetailedStats(ctx context.Context, runID string, filter runs.RowFilter) ([]stats.DetailedStatRow, error)
}

// RefreshStatus exposes the state of the background refresher
type RefreshStatus interface {
	Status() *runs.RefresherStatus
}

// latestRunID resolves to the most recently generated run
const latestRunID = "latest"

// StatsHandler serves stored review statistics
type StatsHandler struct {
	runs      RunReader
	refresher RefreshStatus
}

// NewStatsHandler creates a new stats handler. refresher may be nil.
func NewStatsHandler(reader RunReader, refresher RefreshStatus) *StatsHandler {
	return &StatsHandler{
		runs:      reader,
		refresher: refresher,
	}
}

// StatsHealthResponse represents the stats health check response
type StatsHealthResponse struct {
	Status    string         `json:"status"`
	LatestRun *runs.Run      `json:"latestRun,omitempty"`
	Refresher *RefresherInfo `json:"refresher,omitempty"`
}

// RefresherInfo represents refresher status
type RefresherInfo struct {
	LastRun   string `json:"lastRun,omitempty"`
	LastRunID string `json:"lastRunId,omitempty"`
	Status    string `json:"status"`
}

// Health handles GET /api/stats/health
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := StatsHealthResponse{Status: "healthy"}

	latest, err := h.runs.LatestRun(r.Context())
	switch {
	case err == nil:
		response.LatestRun = latest
	case errors.Is(err, runs.ErrRunNotFound):
		response.Status = "empty"
	default:
		slog.Error("Failed to fetch latest run", "error", err)
		response.Status = "degraded"
	}

	if h.refresher != nil {
		status := h.refresher.Status()
		info := &RefresherInfo{
			LastRunID: status.LastRunID,
			Status:    status.LastStatus,
		}
		if !status.LastRun.IsZero() {
			info.LastRun = status.LastRun.Format(time.RFC3339)
		}
		response.Refresher = info
	}

	respondJSON(w, http.StatusOK, response)
}

// ListRunsResponse represents the run list
type ListRunsResponse struct {
	Runs []*runs.Run `json:"runs"`
}

// ListRuns handles GET /api/runs
func (h *StatsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 || l > 100 {
			respondError(w, http.StatusBadRequest, "invalid limit (1-100)")
			return
		}
		limit = l
	}

	list, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, ListRunsResponse{Runs: list})
}

// GetRun handles GET /api/runs/{id}
func (h *StatsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.resolveRun(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// DetailedResponse represents the detailed rows of a run
type DetailedResponse struct {
	Run  *runs.Run               `json:"run"`
	Rows []stats.DetailedStatRow `json:"rows"`
}

// Detailed handles GET /api/runs/{id}/detailed
func (h *StatsHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	run, ok := h.resolveRun(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	rows, ok := h.detailedRows(r.Context(), w, run, runs.RowFilter{
		Owner:  q.Get("owner"),
		Repo:   q.Get("repo"),
		Author: q.Get("author"),
	})
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, DetailedResponse{Run: run, Rows: rows})
}

// SummaryResponse represents the per-author summary of a run
type SummaryResponse struct {
	Run  *runs.Run          `json:"run"`
	Rows []stats.SummaryRow `json:"rows"`
}

// Summary handles GET /api/runs/{id}/summary
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	run, ok := h.resolveRun(w, r)
	if !ok {
		return
	}

	rows, ok := h.detailedRows(r.Context(), w, run, runs.RowFilter{})
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, SummaryResponse{Run: run, Rows: stats.ComputeSummary(rows)})
}

// Export handles GET /api/runs/{id}/export?format=csv|json.
// Protected by the export guard and a 30s timeout.
func (h *StatsHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		respondError(w, http.StatusBadRequest, "invalid format (use csv or json)")
		return
	}

	run, ok := h.resolveRun(w, r.WithContext(ctx))
	if !ok {
		return
	}

	rows, ok := h.detailedRows(ctx, w, run, runs.RowFilter{})
	if !ok {
		return
	}

	filename := fmt.Sprintf("review-stats-%s.%s", run.ID, format)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	var err error
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		err = report.WriteDetailedCSV(w, rows)
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err = report.WriteJSON(w, rows)
	}
	if err != nil {
		// headers are already sent
		slog.Error("Export write failed", "run_id", run.ID, "format", format, "error", err)
	}
}

// resolveRun loads the run named by the {id} URL parameter and writes
// the error response itself when it cannot.
func (h *StatsHandler) resolveRun(w http.ResponseWriter, r *http.Request) (*runs.Run, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing run id")
		return nil, false
	}

	var (
		run *runs.Run
		err error
	)
	if id == latestRunID {
		run, err = h.runs.LatestRun(r.Context())
	} else {
		run, err = h.runs.GetRun(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "run not found")
			return nil, false
		}
		slog.Error("Failed to fetch run", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return run, true
}

func (h *StatsHandler) detailedRows(ctx context.Context, w http.ResponseWriter, run *runs.Run, filter runs.RowFilter) ([]stats.DetailedStatRow, bool) {
	rows, err := h.runs.DetailedStats(ctx, run.ID, filter)
	if err != nil {
		slog.Error("Failed to fetch detailed stats", "run_id", run.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if rows == nil {
		rows = []stats.DetailedStatRow{}
	}
	return rows, true
}
