package logger

import (
	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/models"
)

// RunLogger is the full set of events a run emits.
type RunLogger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogRunStart(suite, runID string, total, threads int)
	LogTestStart(workerID int, testID string)
	LogTestResult(outcome models.TestOutcome)
	LogSweep(result artifact.SweepResult)
	LogSummary(summary models.RunSummary)
}

// MultiLogger fans every event out to several loggers in order.
type MultiLogger struct {
	loggers []RunLogger
}

// NewMultiLogger skips nil loggers.
func NewMultiLogger(loggers ...RunLogger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) each(fn func(RunLogger)) {
	for _, l := range m.loggers {
		fn(l)
	}
}

func (m *MultiLogger) LogTrace(msg string) { m.each(func(l RunLogger) { l.LogTrace(msg) }) }
func (m *MultiLogger) LogDebug(msg string) { m.each(func(l RunLogger) { l.LogDebug(msg) }) }
func (m *MultiLogger) LogInfo(msg string)  { m.each(func(l RunLogger) { l.LogInfo(msg) }) }
func (m *MultiLogger) LogWarn(msg string)  { m.each(func(l RunLogger) { l.LogWarn(msg) }) }
func (m *MultiLogger) LogError(msg string) { m.each(func(l RunLogger) { l.LogError(msg) }) }

func (m *MultiLogger) LogRunStart(suite, runID string, total, threads int) {
	m.each(func(l RunLogger) { l.LogRunStart(suite, runID, total, threads) })
}

func (m *MultiLogger) LogTestStart(workerID int, testID string) {
	m.each(func(l RunLogger) { l.LogTestStart(workerID, testID) })
}

func (m *MultiLogger) LogTestResult(outcome models.TestOutcome) {
	m.each(func(l RunLogger) { l.LogTestResult(outcome) })
}

func (m *MultiLogger) LogSweep(result artifact.SweepResult) {
	m.each(func(l RunLogger) { l.LogSweep(result) })
}

func (m *MultiLogger) LogSummary(summary models.RunSummary) {
	m.each(func(l RunLogger) { l.LogSummary(summary) })
}
