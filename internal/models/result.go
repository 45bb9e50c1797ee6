package models

import (
	"errors"
	"time"
)

// Status is the terminal state of a single test case.
type Status string

// Test outcome status constants
const (
	StatusPassed  Status = "PASSED"  // Test body returned without error
	StatusFailed  Status = "FAILED"  // Test body returned an error, panicked or timed out
	StatusSkipped Status = "SKIPPED" // Test body asked to be skipped or never ran
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Marker returns the short bracketed tag used in result lines, e.g. "[PASS]".
func (s Status) Marker() string {
	switch s {
	case StatusPassed:
		return "[PASS]"
	case StatusFailed:
		return "[FAIL]"
	case StatusSkipped:
		return "[SKIP]"
	default:
		return "[????]"
	}
}

// TestOutcome is the immutable result of one test case.
// Error is set iff Status is FAILED or SKIPPED; Screenshot is set iff a
// capture was persisted for the test.
type TestOutcome struct {
	TestID     string        // Unique test identifier within the run
	Name       string        // Display name
	Status     Status        // PASSED, FAILED or SKIPPED
	StartedAt  time.Time     // When the final attempt started
	Duration   time.Duration // Duration of the final attempt
	Error      string        // Failure message or skip reason
	Screenshot string        // Path of the captured screenshot artifact
	Attempts   int           // Number of attempts made (1 + retries)
	WorkerID   int           // Worker that executed the final attempt
}

// Validate checks the presence rules between Status, Error and Screenshot.
func (o TestOutcome) Validate() error {
	if o.TestID == "" {
		return errors.New("outcome test id is required")
	}
	if !o.Status.Valid() {
		return errors.New("outcome status must be PASSED, FAILED or SKIPPED")
	}
	if o.Status == StatusPassed && o.Error != "" {
		return errors.New("passed outcome cannot carry an error message")
	}
	if o.Status != StatusPassed && o.Error == "" {
		return errors.New("failed or skipped outcome requires an error message")
	}
	return nil
}

// WithScreenshot returns a copy of the outcome with the screenshot path set.
func (o TestOutcome) WithScreenshot(path string) TestOutcome {
	o.Screenshot = path
	return o
}

// DisplayName returns Name, falling back to TestID.
func (o TestOutcome) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.TestID
}
