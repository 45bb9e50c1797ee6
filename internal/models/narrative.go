package models

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// StepKind classifies a narrative line written by a test body.
type StepKind string

const (
	StepInfo         StepKind = "info"
	StepStep         StepKind = "step"
	StepAction       StepKind = "action"
	StepVerification StepKind = "verification"
	StepPass         StepKind = "pass"
	StepFail         StepKind = "fail"
	StepWarning      StepKind = "warning"
	StepDebug        StepKind = "debug"
)

// Step is one line of a test's narrative. Text may contain markdown.
type Step struct {
	Time time.Time
	Kind StepKind
	Text string
}

// Narrative collects the steps of a single test case. It belongs to the
// worker running the test but tolerates helper goroutines spawned by the body.
type Narrative struct {
	mu    sync.Mutex
	steps []Step
	now   func() time.Time
}

// NewNarrative creates an empty narrative using the wall clock.
func NewNarrative() *Narrative {
	return &Narrative{now: time.Now}
}

func (n *Narrative) add(kind StepKind, format string, args ...interface{}) {
	if n == nil {
		return
	}
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.steps = append(n.steps, Step{Time: n.now(), Kind: kind, Text: text})
}

func (n *Narrative) Info(format string, args ...interface{})   { n.add(StepInfo, format, args...) }
func (n *Narrative) Step(format string, args ...interface{})   { n.add(StepStep, format, args...) }
func (n *Narrative) Action(format string, args ...interface{}) { n.add(StepAction, format, args...) }
func (n *Narrative) Verify(format string, args ...interface{}) {
	n.add(StepVerification, format, args...)
}
func (n *Narrative) Pass(format string, args ...interface{})  { n.add(StepPass, format, args...) }
func (n *Narrative) Fail(format string, args ...interface{})  { n.add(StepFail, format, args...) }
func (n *Narrative) Warn(format string, args ...interface{})  { n.add(StepWarning, format, args...) }
func (n *Narrative) Debug(format string, args ...interface{}) { n.add(StepDebug, format, args...) }

// Steps returns a copy of the recorded steps.
func (n *Narrative) Steps() []Step {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Step, len(n.steps))
	copy(out, n.steps)
	return out
}

// SkipError marks a test body that chose not to run.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns an error that turns the current test into a SKIPPED outcome.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// IsSkip reports whether err is or wraps a SkipError, and returns its reason.
func IsSkip(err error) (string, bool) {
	var se *SkipError
	if errors.As(err, &se) {
		return se.Reason, true
	}
	return "", false
}
