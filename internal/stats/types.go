// Package stats turns normalized pull requests and their reviews into
// per-(owner, repo, author) and per-author contribution statistics.
package stats

import "time"

// PRState is the state of a pull request as reported by GitHub
type PRState string

const (
	StateOpen   PRState = "open"
	StateClosed PRState = "closed"
)

// ReviewState is the state of a submitted review. Values other than the
// constants below pass through normalization untouched and are not counted.
type ReviewState string

const (
	ReviewCommented        ReviewState = "COMMENTED"
	ReviewApproved         ReviewState = "APPROVED"
	ReviewChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewDismissed        ReviewState = "DISMISSED"
	ReviewPending          ReviewState = "PENDING"
)

// PullRequest is the normalized shape the aggregator works on.
// Reviews keep the order the API returned them in.
type PullRequest struct {
	Owner     string
	Repo      string
	Number    int
	State     PRState
	Title     string
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
	MergedAt  *time.Time
	Reviews   []Review
}

// Review is a normalized pull request review
type Review struct {
	State       ReviewState
	Reviewer    string
	SubmittedAt time.Time // zero for pending reviews
}

// DetailedStatRow holds counters for one (owner, repo, author) triple
type DetailedStatRow struct {
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	Author    string `json:"author"`
	Created   int    `json:"created"`
	Commented int    `json:"commented"`
	Approved  int    `json:"approved"`
}

// SummaryRow rolls up all DetailedStatRow entries of one author
type SummaryRow struct {
	Author        string `json:"author"`
	PullRequests  int    `json:"pull_requests"`
	Repos         int    `json:"repos"`
	Commented     int    `json:"commented"`
	Approved      int    `json:"approved"`
	ReposReviewed int    `json:"repos_reviewed"`
}

// Report bundles both output tables of one aggregation
type Report struct {
	Window       Window            `json:"window"`
	PullRequests int               `json:"pullRequests"`
	Detailed     []DetailedStatRow `json:"detailed"`
	Summary      []SummaryRow      `json:"summary"`
	GeneratedAt  time.Time         `json:"generatedAt"`
}
