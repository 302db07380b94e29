// Package timewindow restricts email searches to a fixed set of lookback
// durations. Only the listed labels are accepted so that typos do not turn
// into surprisingly large mailbox scans.
package timewindow

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLabel is used when no time filter is given on the command line.
const DefaultLabel = "1d"

var allowed = []struct {
	label    string
	duration time.Duration
}{
	{"30m", 30 * time.Minute},
	{"1h", 1 * time.Hour},
	{"2h", 2 * time.Hour},
	{"3h", 3 * time.Hour},
	{"6h", 6 * time.Hour},
	{"12h", 12 * time.Hour},
	{"1d", 24 * time.Hour},
	{"2d", 48 * time.Hour},
	{"3d", 72 * time.Hour},
	{"7d", 7 * 24 * time.Hour},
}

// Window is a validated lookback interval ending at "now".
type Window struct {
	label    string
	duration time.Duration
}

// Parse validates a time filter label. Anything outside the allowed set is
// rejected, including spellings like "24h" that would name the same length
// as an allowed label.
func Parse(label string) (Window, error) {
	trimmed := strings.TrimSpace(label)
	for _, a := range allowed {
		if a.label == trimmed {
			return Window{label: a.label, duration: a.duration}, nil
		}
	}
	return Window{}, fmt.Errorf("invalid time filter %q, allowed values: %s", label, strings.Join(Labels(), ", "))
}

// Default returns the 1d window.
func Default() Window {
	w, _ := Parse(DefaultLabel)
	return w
}

// Labels lists the accepted filter values in ascending order.
func Labels() []string {
	out := make([]string, len(allowed))
	for i, a := range allowed {
		out[i] = a.label
	}
	return out
}

func (w Window) String() string          { return w.label }
func (w Window) Duration() time.Duration { return w.duration }

// Bounds returns the interval covered by the window when it ends at now.
func (w Window) Bounds(now time.Time) (start, end time.Time) {
	return now.Add(-w.duration), now
}
