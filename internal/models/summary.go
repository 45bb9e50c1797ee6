package models

import (
	"fmt"
	"time"
)

// RunSummary aggregates every TestOutcome of one run.
// Results holds one formatted line per outcome in completion order.
type RunSummary struct {
	RunID      string
	SuiteName  string
	Total      int
	Passed     int
	Failed     int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Results    []string
	Outcomes   []TestOutcome // Every outcome, completion order
	Failures   []TestOutcome // Failed outcomes, completion order
	ReportPath string
}

// SuccessRate returns passed/total as a percentage; 0 when no tests ran.
// Skipped tests count in the denominator.
func (s RunSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) * 100.0 / float64(s.Total)
}

// SuccessRateString formats the success rate with one decimal, e.g. "33.3%".
func (s RunSummary) SuccessRateString() string {
	return fmt.Sprintf("%.1f%%", s.SuccessRate())
}

// AllPassed reports whether the run had no failures.
func (s RunSummary) AllPassed() bool {
	return s.Failed == 0
}

// Consistent reports whether the status counters add up to the total.
func (s RunSummary) Consistent() bool {
	return s.Passed+s.Failed+s.Skipped == s.Total && len(s.Results) == s.Total
}

// FormatDuration renders a duration the way run summaries print it:
// "2 min 5 sec" from one minute up, "1.200 sec" below.
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	minutes := seconds / 60
	seconds = seconds % 60

	if minutes > 0 {
		return fmt.Sprintf("%d min %d sec", minutes, seconds)
	}
	return fmt.Sprintf("%d.%03d sec", seconds, ms%1000)
}

// ResultLine formats an outcome as a single summary entry.
//
//	[PASS] name (1.200 sec)
//	[FAIL] name (0.450 sec)
//	   ERROR: element not found
//	[SKIP] name
//	   REASON: precondition failed
func ResultLine(o TestOutcome) string {
	name := o.DisplayName()
	switch o.Status {
	case StatusPassed:
		return fmt.Sprintf("%s %s (%s)", o.Status.Marker(), name, FormatDuration(o.Duration))
	case StatusFailed:
		return fmt.Sprintf("%s %s (%s)\n   ERROR: %s", o.Status.Marker(), name, FormatDuration(o.Duration), o.Error)
	case StatusSkipped:
		return fmt.Sprintf("%s %s\n   REASON: %s", o.Status.Marker(), name, o.Error)
	default:
		return fmt.Sprintf("%s %s", o.Status.Marker(), name)
	}
}
