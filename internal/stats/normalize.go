package stats

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/skridlevsky/review-stats/internal/github"
)

// ErrMalformedPayload marks a raw payload that cannot be keyed safely,
// typically a null user on a PR or review.
var ErrMalformedPayload = errors.New("malformed payload")

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizePullRequest maps a raw PR of owner/repo to a PullRequest with no reviews
func NormalizePullRequest(owner, repo string, raw *github.PullRequest) (PullRequest, error) {
	if raw == nil {
		return PullRequest{}, fmt.Errorf("%w: nil pull request in %s/%s", ErrMalformedPayload, owner, repo)
	}
	if err := validate.Struct(raw); err != nil {
		return PullRequest{}, fmt.Errorf("%w: pull request %s/%s#%d: %v", ErrMalformedPayload, owner, repo, raw.Number, err)
	}

	return PullRequest{
		Owner:     owner,
		Repo:      repo,
		Number:    raw.Number,
		State:     PRState(raw.State),
		Title:     raw.Title,
		Author:    raw.User.Login,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		ClosedAt:  raw.ClosedAt,
		MergedAt:  raw.MergedAt,
		Reviews:   []Review{},
	}, nil
}

// NormalizeReview maps a raw review to a Review
func NormalizeReview(raw *github.Review) (Review, error) {
	if raw == nil {
		return Review{}, fmt.Errorf("%w: nil review", ErrMalformedPayload)
	}
	if err := validate.Struct(raw); err != nil {
		return Review{}, fmt.Errorf("%w: review %d: %v", ErrMalformedPayload, raw.ID, err)
	}

	var submittedAt time.Time
	if raw.SubmittedAt != nil {
		submittedAt = *raw.SubmittedAt
	}

	return Review{
		State:       ReviewState(raw.State),
		Reviewer:    raw.User.Login,
		SubmittedAt: submittedAt,
	}, nil
}
