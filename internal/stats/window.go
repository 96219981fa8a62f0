package stats

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a window does not end after it starts
var ErrInvalidWindow = errors.New("invalid date window")

// Window is the reporting interval. Both bounds are exclusive.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewWindow builds a window and checks that from < to
func NewWindow(from, to time.Time) (Window, error) {
	w := Window{From: from, To: to}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate reports whether the window is usable
func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("%w: both bounds are required", ErrInvalidWindow)
	}
	if !w.From.Before(w.To) {
		return fmt.Errorf("%w: %s is not before %s", ErrInvalidWindow,
			w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether ts lies strictly between From and To
func (w Window) Contains(ts time.Time) bool {
	return InWindow(ts, w.From, w.To)
}

// Admits is the fetch inclusion rule: open PRs are always kept, everything
// else only when it was created inside the window.
func (w Window) Admits(state PRState, createdAt time.Time) bool {
	return state == StateOpen || w.Contains(createdAt)
}

func (w Window) String() string {
	return fmt.Sprintf("(%s, %s)", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}

// InWindow reports whether from < ts < to. Timestamps equal to a bound are outside.
func InWindow(ts, from, to time.Time) bool {
	return ts.After(from) && ts.Before(to)
}
