package stats

import (
	"testing"
	"time"

	"github.com/skridlevsky/review-stats/internal/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawPR() *github.PullRequest {
	merged := day("2023-09-20")
	return &github.PullRequest{
		ID:        99,
		Number:    1,
		Title:     "Add widget",
		State:     "closed",
		User:      &github.User{Login: "alice", ID: 1},
		CreatedAt: day("2023-09-16"),
		UpdatedAt: day("2023-09-20"),
		ClosedAt:  &merged,
		MergedAt:  &merged,
	}
}

func TestNormalizePullRequest(t *testing.T) {
	pr, err := NormalizePullRequest("acme", "widgets", rawPR())
	require.NoError(t, err)

	assert.Equal(t, "acme", pr.Owner)
	assert.Equal(t, "widgets", pr.Repo)
	assert.Equal(t, 1, pr.Number)
	assert.Equal(t, StateClosed, pr.State)
	assert.Equal(t, "alice", pr.Author)
	assert.Equal(t, "Add widget", pr.Title)
	assert.Equal(t, day("2023-09-16"), pr.CreatedAt)
	require.NotNil(t, pr.MergedAt)
	assert.Equal(t, day("2023-09-20"), *pr.MergedAt)
	assert.NotNil(t, pr.Reviews)
	assert.Empty(t, pr.Reviews)
}

func TestNormalizePullRequest_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(pr *github.PullRequest)
	}{
		{"null user", func(pr *github.PullRequest) { pr.User = nil }},
		{"empty login", func(pr *github.PullRequest) { pr.User.Login = "" }},
		{"unknown state", func(pr *github.PullRequest) { pr.State = "merged" }},
		{"missing created_at", func(pr *github.PullRequest) { pr.CreatedAt = time.Time{} }},
		{"missing number", func(pr *github.PullRequest) { pr.Number = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawPR()
			tt.mutate(raw)

			_, err := NormalizePullRequest("acme", "widgets", raw)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}

	_, err := NormalizePullRequest("acme", "widgets", nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestNormalizeReview(t *testing.T) {
	at := day("2023-09-17")
	rv, err := NormalizeReview(&github.Review{
		ID:          5,
		User:        &github.User{Login: "bob"},
		State:       "COMMENTED",
		SubmittedAt: &at,
	})
	require.NoError(t, err)
	assert.Equal(t, Review{State: ReviewCommented, Reviewer: "bob", SubmittedAt: at}, rv)

	pending, err := NormalizeReview(&github.Review{User: &github.User{Login: "bob"}, State: "PENDING"})
	require.NoError(t, err)
	assert.True(t, pending.SubmittedAt.IsZero())
	assert.Equal(t, ReviewPending, pending.State)
}

func TestNormalizeReview_Malformed(t *testing.T) {
	_, err := NormalizeReview(&github.Review{ID: 1, State: "APPROVED"})
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = NormalizeReview(&github.Review{ID: 2, User: &github.User{}, State: "APPROVED"})
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = NormalizeReview(&github.Review{ID: 3, User: &github.User{Login: "bob"}})
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = NormalizeReview(nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
