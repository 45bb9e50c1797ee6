// Package metrics aggregates test outcomes into run summaries and mirrors
// them into Prometheus collectors.
package metrics

import (
	"sync"
	"time"

	"github.com/harrison/suiterun/internal/models"
)

// RunMetrics is the shared aggregator of one run. Every worker records
// into it concurrently; all mutations happen under a single mutex.
type RunMetrics struct {
	mu        sync.Mutex
	runID     string
	suiteName string
	startedAt time.Time
	total     int
	passed    int
	failed    int
	skipped   int
	results   []string
	outcomes  []models.TestOutcome
	failures  []models.TestOutcome
}

// NewRunMetrics creates an empty aggregator.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{}
}

// Reset zeroes the counters and starts a new run.
func (m *RunMetrics) Reset(runID, suiteName string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID = runID
	m.suiteName = suiteName
	m.startedAt = now
	m.total, m.passed, m.failed, m.skipped = 0, 0, 0, 0
	m.results = nil
	m.outcomes = nil
	m.failures = nil
}

// RecordOutcome counts o and appends its result line.
func (m *RunMetrics) RecordOutcome(o models.TestOutcome) {
	line := models.ResultLine(o)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	switch o.Status {
	case models.StatusPassed:
		m.passed++
	case models.StatusFailed:
		m.failed++
		m.failures = append(m.failures, o)
	case models.StatusSkipped:
		m.skipped++
	}
	m.results = append(m.results, line)
	m.outcomes = append(m.outcomes, o)
}

// Total returns the number of outcomes recorded so far.
func (m *RunMetrics) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Snapshot returns a deep copy of the aggregate, finished at end.
func (m *RunMetrics) Snapshot(end time.Time) models.RunSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := models.RunSummary{
		RunID:      m.runID,
		SuiteName:  m.suiteName,
		Total:      m.total,
		Passed:     m.passed,
		Failed:     m.failed,
		Skipped:    m.skipped,
		StartedAt:  m.startedAt,
		FinishedAt: end,
		Results:    append([]string(nil), m.results...),
		Outcomes:   append([]models.TestOutcome(nil), m.outcomes...),
		Failures:   append([]models.TestOutcome(nil), m.failures...),
	}
	if !m.startedAt.IsZero() && end.After(m.startedAt) {
		s.Duration = end.Sub(m.startedAt)
	}
	return s
}
