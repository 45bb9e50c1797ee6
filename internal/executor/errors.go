package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionPhase is the part of a test case where an error occurred.
type ExecutionPhase int

const (
	// PhaseSetup covers session acquisition and report section start.
	PhaseSetup ExecutionPhase = iota
	// PhaseBody covers the test body itself.
	PhaseBody
	// PhaseCapture covers failure screenshots.
	PhaseCapture
	// PhaseTeardown covers session release.
	PhaseTeardown
	// PhaseReport covers report writes.
	PhaseReport
)

// String returns the phase name.
func (p ExecutionPhase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseBody:
		return "body"
	case PhaseCapture:
		return "capture"
	case PhaseTeardown:
		return "teardown"
	case PhaseReport:
		return "report"
	default:
		return "unknown"
	}
}

// TestError is an error attributed to one test case.
type TestError struct {
	TestID    string
	Phase     ExecutionPhase
	Message   string
	Err       error
	Timestamp time.Time
}

// NewTestError creates a TestError stamped with the current time.
func NewTestError(testID string, phase ExecutionPhase, msg string, err error) *TestError {
	return &TestError{
		TestID:    testID,
		Phase:     phase,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

func (e *TestError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "test %s (%s): %s", e.TestID, e.Phase, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *TestError) Unwrap() error {
	return e.Err
}

// PanicError carries a recovered panic from a test body.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrRunCancelled is returned by Run when the run context was cancelled
// before every case started.
var ErrRunCancelled = errors.New("run cancelled")

// SuiteError reports an invalid set of test cases.
type SuiteError struct {
	Problems []string
}

func (e *SuiteError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid suite: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid suite: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}
