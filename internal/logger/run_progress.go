package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/harrison/suiterun/internal/models"
)

// RunProgress tracks finished tests of a run by status and renders them as
// an ASCII bar.
type RunProgress struct {
	mu          sync.RWMutex
	total       int
	width       int
	enableColor bool
	label       string
	counts      map[models.Status]int
}

// NewRunProgress creates a progress tracker for total tests.
func NewRunProgress(total, width int, enableColor bool) *RunProgress {
	if width < 1 {
		width = 10
	}
	return &RunProgress{
		total:       total,
		width:       width,
		enableColor: enableColor,
		label:       "Progress",
		counts:      make(map[models.Status]int, 3),
	}
}

// Record counts one finished test.
func (rp *RunProgress) Record(status models.Status) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.counts[status]++
}

// Done returns the number of finished tests.
func (rp *RunProgress) Done() int {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.done()
}

func (rp *RunProgress) done() int {
	n := 0
	for _, c := range rp.counts {
		n += c
	}
	return n
}

// Count returns the number of finished tests with status s.
func (rp *RunProgress) Count(s models.Status) int {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.counts[s]
}

// Percentage returns finished/total clamped to 0-100.
func (rp *RunProgress) Percentage() int {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.percentage()
}

func (rp *RunProgress) percentage() int {
	if rp.total <= 0 {
		return 0
	}
	return min(rp.done()*100/rp.total, 100)
}

// Render formats the tracker.
// Format: "Progress [1 pass, 1 fail, 0 skip] [=====     ] 2/4 (50%)"
func (rp *RunProgress) Render() string {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	perc := rp.percentage()
	filled := perc * rp.width / 100
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", rp.width-filled) + "]"

	count := func(s models.Status, word string) string {
		v := fmt.Sprintf("%d %s", rp.counts[s], word)
		if rp.enableColor && rp.counts[s] > 0 {
			return statusColor(s).Sprint(v)
		}
		return v
	}
	tally := strings.Join([]string{
		count(models.StatusPassed, "pass"),
		count(models.StatusFailed, "fail"),
		count(models.StatusSkipped, "skip"),
	}, ", ")

	return fmt.Sprintf("%s [%s] %s %d/%d (%d%%)", rp.label, tally, bar, rp.done(), rp.total, perc)
}
