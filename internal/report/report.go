// Package report renders aggregated statistics to the console and to files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/skridlevsky/review-stats/internal/stats"
)

// DetailedColumns is the column order of the detailed table
var DetailedColumns = []string{"owner", "repo", "author", "created", "commented", "approved"}

// SummaryColumns is the column order of the summary table
var SummaryColumns = []string{"author", "pull_requests", "repos", "commented", "approved", "repos_reviewed"}

// WriteTables prints the detailed table followed by the summary table
func WriteTables(w io.Writer, rep stats.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)

	fmt.Fprintf(tw, "Detailed stats %s, %d pull requests\n", rep.Window, rep.PullRequests)
	writeRow(tw, DetailedColumns)
	for _, r := range rep.Detailed {
		writeRow(tw, detailedRecord(r))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write detailed table: %w", err)
	}

	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, "Summary")
	writeRow(tw, SummaryColumns)
	for _, r := range rep.Summary {
		writeRow(tw, []string{
			r.Author,
			strconv.Itoa(r.PullRequests),
			strconv.Itoa(r.Repos),
			strconv.Itoa(r.Commented),
			strconv.Itoa(r.Approved),
			strconv.Itoa(r.ReposReviewed),
		})
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write summary table: %w", err)
	}

	return nil
}

func writeRow(w io.Writer, cells []string) {
	for _, c := range cells {
		fmt.Fprintf(w, "%s\t", c)
	}
	fmt.Fprintln(w)
}

func detailedRecord(r stats.DetailedStatRow) []string {
	return []string{
		r.Owner,
		r.Repo,
		r.Author,
		strconv.Itoa(r.Created),
		strconv.Itoa(r.Commented),
		strconv.Itoa(r.Approved),
	}
}

// WriteJSON writes detailed rows as an indented JSON array
func WriteJSON(w io.Writer, rows []stats.DetailedStatRow) error {
	if rows == nil {
		rows = []stats.DetailedStatRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// SaveJSON persists detailed rows to path, replacing any existing file
func SaveJSON(path string, rows []stats.DetailedStatRow) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := WriteJSON(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// WriteDetailedCSV writes detailed rows with a header line
func WriteDetailedCSV(w io.Writer, rows []stats.DetailedStatRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DetailedColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(detailedRecord(r)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
