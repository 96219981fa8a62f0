package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skridlevsky/review-stats/internal/runs"
	"github.com/skridlevsky/review-stats/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunID = "0b7c6a0e-5f1e-4c43-9d55-0d9a4f0f6f3a"

type fakeRuns struct {
	runs    []*runs.Run
	rows    map[string][]stats.DetailedStatRow
	filters []runs.RowFilter
	err     error
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]*runs.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*runs.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, runs.ErrRunNotFound
}

func (f *fakeRuns) LatestRun(_ context.Context) (*runs.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.runs) == 0 {
		return nil, runs.ErrRunNotFound
	}
	return f.runs[0], nil
}

func (f *fakeRuns) DetailedStats(_ context.Context, runID string, filter runs.RowFilter) ([]stats.DetailedStatRow, error) {
	f.filters = append(f.filters, filter)
	var out []stats.DetailedStatRow
	for _, row := range f.rows[runID] {
		if filter.Author != "" && row.Author != filter.Author {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type fakeStatus struct{ status runs.RefresherStatus }

func (f *fakeStatus) Status() *runs.RefresherStatus { return &f.status }

type fakeDB struct{ err error }

func (f *fakeDB) Health(context.Context) error { return f.err }

func newFakeRuns() *fakeRuns {
	return &fakeRuns{
		runs: []*runs.Run{
			{ID: testRunID, Repositories: []string{"acme/widgets"}, PullRequests: 2, Rows: 2},
			{ID: "older", Repositories: []string{"acme/widgets"}},
		},
		rows: map[string][]stats.DetailedStatRow{
			testRunID: {
				{Owner: "acme", Repo: "widgets", Author: "alice", Created: 2, Commented: 1},
				{Owner: "acme", Repo: "widgets", Author: "bob", Commented: 1, Approved: 1},
			},
		},
	}
}

func serve(t *testing.T, cfg *RouterConfig, path string) *httptest.ResponseRecorder {
	t.Helper()
	result := NewRouter(cfg)
	t.Cleanup(result.RateLimiters.Stop)

	rec := httptest.NewRecorder()
	result.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, &RouterConfig{Runs: newFakeRuns(), Database: &fakeDB{}}, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "healthy", body.Services["database"])

	rec = serve(t, &RouterConfig{Runs: newFakeRuns(), Database: &fakeDB{err: errors.New("down")}}, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatsHealth(t *testing.T) {
	last := time.Date(2023, 9, 23, 12, 0, 0, 0, time.UTC)
	refresher := &fakeStatus{status: runs.RefresherStatus{LastRun: last, LastRunID: testRunID, LastStatus: "ok"}}

	rec := serve(t, &RouterConfig{Runs: newFakeRuns(), Refresher: refresher}, "/api/stats/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StatsHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	require.NotNil(t, body.LatestRun)
	assert.Equal(t, testRunID, body.LatestRun.ID)
	require.NotNil(t, body.Refresher)
	assert.Equal(t, "2023-09-23T12:00:00Z", body.Refresher.LastRun)
	assert.Equal(t, "ok", body.Refresher.Status)

	rec = serve(t, &RouterConfig{Runs: &fakeRuns{}}, "/api/stats/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "empty", body.Status)
}

func TestListRuns(t *testing.T) {
	rec := serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, testRunID, body.Runs[0].ID)

	rec = serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, &RouterConfig{Runs: &fakeRuns{err: errors.New("db down")}}, "/api/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetRun(t *testing.T) {
	rec := serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var run runs.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, testRunID, run.ID)

	rec = serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errBody ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "run not found", errBody.Error)
}

func TestDetailed_Filters(t *testing.T) {
	reader := newFakeRuns()
	rec := serve(t, &RouterConfig{Runs: reader}, "/api/runs/"+testRunID+"/detailed?owner=acme&repo=widgets&author=bob")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, reader.filters, 1)
	assert.Equal(t, runs.RowFilter{Owner: "acme", Repo: "widgets", Author: "bob"}, reader.filters[0])

	var body DetailedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "bob", body.Rows[0].Author)
}

func TestDetailed_EmptyRunHasEmptyArray(t *testing.T) {
	rec := serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs/older/detailed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":[]`)
}

func TestSummary(t *testing.T) {
	rec := serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs/latest/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []stats.SummaryRow{
		{Author: "alice", PullRequests: 2, Repos: 1, Commented: 1, ReposReviewed: 1},
		{Author: "bob", Commented: 1, Approved: 1, ReposReviewed: 1},
	}, body.Rows)
}

func TestExport_CSV(t *testing.T) {
	rec := serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs/"+testRunID+"/export")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=review-stats-"+testRunID+".csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t,
		"owner,repo,author,created,commented,approved\n"+
			"acme,widgets,alice,2,1,0\n"+
			"acme,widgets,bob,0,1,1\n",
		rec.Body.String())
}

func TestExport_JSONAndBadFormat(t *testing.T) {
	rec := serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs/latest/export?format=json")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []stats.DetailedStatRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 2)

	rec = serve(t, &RouterConfig{Runs: newFakeRuns()}, "/api/runs/latest/export?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport_RateLimited(t *testing.T) {
	result := NewRouter(&RouterConfig{Runs: newFakeRuns()})
	defer result.RateLimiters.Stop()

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/runs/latest/export", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		result.Router.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORS_Development(t *testing.T) {
	result := NewRouter(&RouterConfig{Runs: newFakeRuns(), Development: true})
	defer result.RateLimiters.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	result.Router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
