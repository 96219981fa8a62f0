package stats

import (
	"sort"
	"time"
)

// statKey is the identity of a DetailedStatRow
type statKey struct {
	Owner string
	Repo  string
	Actor string
}

type counters struct {
	created   int
	commented int
	approved  int
}

// repoKey identifies a repository within the summary fold
type repoKey struct {
	Owner string
	Repo  string
}

// reviewMark records that a reviewer was already counted for a state on one PR
type reviewMark struct {
	Reviewer string
	State    ReviewState
}

// ComputeDetailedStats folds the complete PR collection into one row per
// (owner, repo, actor) that has at least one counted event. Rows are sorted
// by owner, repo, author.
func ComputeDetailedStats(prs []PullRequest, w Window) []DetailedStatRow {
	acc := make(map[statKey]*counters)
	row := func(k statKey) *counters {
		c, ok := acc[k]
		if !ok {
			c = &counters{}
			acc[k] = c
		}
		return c
	}

	for i := range prs {
		pr := &prs[i]

		if w.Contains(pr.CreatedAt) {
			row(statKey{Owner: pr.Owner, Repo: pr.Repo, Actor: pr.Author}).created++
		}

		// Scoped to this PR: one increment per reviewer per state.
		counted := make(map[reviewMark]struct{})
		for _, rv := range pr.Reviews {
			if rv.State != ReviewCommented && rv.State != ReviewApproved {
				continue
			}
			if rv.Reviewer == pr.Author || !w.Contains(rv.SubmittedAt) {
				continue
			}

			mark := reviewMark{Reviewer: rv.Reviewer, State: rv.State}
			if _, seen := counted[mark]; seen {
				continue
			}
			counted[mark] = struct{}{}

			c := row(statKey{Owner: pr.Owner, Repo: pr.Repo, Actor: rv.Reviewer})
			if rv.State == ReviewCommented {
				c.commented++
			} else {
				c.approved++
			}
		}
	}

	rows := make([]DetailedStatRow, 0, len(acc))
	for k, c := range acc {
		rows = append(rows, DetailedStatRow{
			Owner:     k.Owner,
			Repo:      k.Repo,
			Author:    k.Actor,
			Created:   c.created,
			Commented: c.commented,
			Approved:  c.approved,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.Repo != b.Repo {
			return a.Repo < b.Repo
		}
		return a.Author < b.Author
	})

	return rows
}

// ComputeSummary rolls detailed rows up by author. Rows are sorted by author.
func ComputeSummary(detailed []DetailedStatRow) []SummaryRow {
	type rollup struct {
		row      SummaryRow
		authored map[repoKey]struct{}
		reviewed map[repoKey]struct{}
	}

	acc := make(map[string]*rollup)
	for _, d := range detailed {
		r, ok := acc[d.Author]
		if !ok {
			r = &rollup{
				row:      SummaryRow{Author: d.Author},
				authored: make(map[repoKey]struct{}),
				reviewed: make(map[repoKey]struct{}),
			}
			acc[d.Author] = r
		}

		r.row.PullRequests += d.Created
		r.row.Commented += d.Commented
		r.row.Approved += d.Approved

		key := repoKey{Owner: d.Owner, Repo: d.Repo}
		if d.Created > 0 {
			r.authored[key] = struct{}{}
		}
		if d.Commented > 0 || d.Approved > 0 {
			r.reviewed[key] = struct{}{}
		}
	}

	rows := make([]SummaryRow, 0, len(acc))
	for _, r := range acc {
		r.row.Repos = len(r.authored)
		r.row.ReposReviewed = len(r.reviewed)
		rows = append(rows, r.row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Author < rows[j].Author })

	return rows
}

// BuildReport runs both aggregation passes over a complete PR collection
func BuildReport(prs []PullRequest, w Window) Report {
	detailed := ComputeDetailedStats(prs, w)
	return Report{
		Window:       w,
		PullRequests: len(prs),
		Detailed:     detailed,
		Summary:      ComputeSummary(detailed),
		GeneratedAt:  time.Now().UTC(),
	}
}
