package collector

import "log/slog"

// Progress observes the collector after each unit of work: one repository's
// PR listing or one PR's review fetch.
type Progress interface {
	Report(completed, total int, label string)
}

// ProgressFunc adapts a plain function to Progress
type ProgressFunc func(completed, total int, label string)

// Report calls f
func (f ProgressFunc) Report(completed, total int, label string) {
	f(completed, total, label)
}

// LogProgress reports through slog every Every units and on the last one
type LogProgress struct {
	Every int
}

// Report implements Progress
func (p LogProgress) Report(completed, total int, label string) {
	every := p.Every
	if every <= 0 {
		every = 10
	}
	if completed%every == 0 || completed == total {
		slog.Info("Progress", "completed", completed, "total", total, "item", label)
	}
}
