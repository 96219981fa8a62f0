package github

import "time"

// User is the account block embedded in pull request and review payloads.
// GitHub sends null for deleted ("ghost") accounts.
type User struct {
	Login string `json:"login" validate:"required"`
	ID    int64  `json:"id"`
	Type  string `json:"type"`
}

// PullRequest represents a PR from the GitHub pulls API
type PullRequest struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number" validate:"gt=0"`
	Title     string     `json:"title"`
	State     string     `json:"state" validate:"required,oneof=open closed"`
	HTMLURL   string     `json:"html_url"`
	User      *User      `json:"user" validate:"required"`
	CreatedAt time.Time  `json:"created_at" validate:"required"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

// Review represents a pull request review
type Review struct {
	ID          int64      `json:"id"`
	User        *User      `json:"user" validate:"required"`
	Body        string     `json:"body"`
	State       string     `json:"state" validate:"required"` // APPROVED, CHANGES_REQUESTED, COMMENTED, DISMISSED, PENDING
	HTMLURL     string     `json:"html_url"`
	SubmittedAt *time.Time `json:"submitted_at"` // null while PENDING
}
