package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harrison/suiterun/internal/models"
	"github.com/harrison/suiterun/internal/session"
)

const (
	cancelledReason   = "run cancelled"
	defaultSkipReason = "skipped"
)

// runPool feeds cases to a fixed set of workers with ids 1..Threads and
// waits for all of them.
func (o *Orchestrator) runPool(ctx context.Context, cases []TestCase) {
	jobs := make(chan TestCase)
	var wg sync.WaitGroup

	for id := 1; id <= o.opts.Threads; id++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for tc := range jobs {
				o.executeCase(ctx, workerID, tc)
			}
		}(id)
	}

	for _, tc := range cases {
		jobs <- tc
	}
	close(jobs)
	wg.Wait()
}

// executeCase runs tc with retries and records exactly one outcome.
func (o *Orchestrator) executeCase(ctx context.Context, workerID int, tc TestCase) {
	if ctx.Err() != nil {
		o.recordSkipped(ctx, workerID, tc, cancelledReason)
		return
	}

	maxAttempts := 1 + o.opts.Retries
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		final := attempt == maxAttempts || ctx.Err() != nil
		outcome, recorded := o.runAttempt(ctx, workerID, tc, attempt, final)
		if recorded {
			return
		}
		o.warn(fmt.Sprintf("[RETRY] %s attempt %d/%d failed: %s", tc.ID, attempt, maxAttempts, outcome.Error))
	}
}

// runAttempt executes one attempt on a fresh session. A failed attempt
// that will be retried is not recorded; its session is released here.
func (o *Orchestrator) runAttempt(ctx context.Context, workerID int, tc TestCase, attempt int, final bool) (models.TestOutcome, bool) {
	narrative := models.NewNarrative()
	started := o.now()

	var outcome models.TestOutcome
	sess, err := o.BeforeTest(ctx, workerID, tc)
	if err != nil {
		outcome = models.TestOutcome{Status: models.StatusFailed, Error: err.Error()}
		narrative.Fail("%s", err.Error())
	} else {
		outcome = o.runBody(ctx, workerID, tc, sess, narrative, attempt)
	}

	outcome.TestID = tc.ID
	outcome.Name = tc.DisplayName()
	outcome.StartedAt = started
	outcome.Attempts = attempt
	outcome.WorkerID = workerID
	if outcome.Duration == 0 {
		outcome.Duration = o.now().Sub(started)
	}

	if outcome.Status == models.StatusFailed && !final {
		if err := o.deps.Sessions.Release(workerID); err != nil {
			o.warn(NewTestError(tc.ID, PhaseTeardown, "release session", err).Error())
		}
		return outcome, false
	}

	o.AfterTest(ctx, workerID, tc, outcome, narrative.Steps())
	return outcome, true
}

type bodyResult struct {
	err      error
	duration time.Duration
}

// runBody calls the test body and classifies its result. Panics become
// FAILED, models.Skip becomes SKIPPED, an expired deadline becomes FAILED
// with a timeout message. A body that ignores its context past the
// deadline is abandoned.
func (o *Orchestrator) runBody(ctx context.Context, workerID int, tc TestCase, sess *session.Session, n *models.Narrative, attempt int) models.TestOutcome {
	timeout := tc.Timeout
	if timeout <= 0 {
		timeout = o.opts.TestTimeout
	}
	bodyCtx := ctx
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		bodyCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	t := &T{
		Narrative: n,
		TestID:    tc.ID,
		WorkerID:  workerID,
		Attempt:   attempt,
		Session:   sess,
		store:     o.deps.Artifacts,
	}

	done := make(chan bodyResult, 1)
	start := time.Now()
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
			done <- bodyResult{err: err, duration: time.Since(start)}
		}()
		err = tc.Body(bodyCtx, t)
	}()

	var res bodyResult
	select {
	case res = <-done:
	case <-bodyCtx.Done():
		select {
		case res = <-done:
		case <-time.After(o.opts.CaptureTimeout):
			res = bodyResult{err: bodyCtx.Err(), duration: time.Since(start)}
		}
	}

	return classify(res, bodyCtx, timeout, n)
}

func classify(res bodyResult, bodyCtx context.Context, timeout time.Duration, n *models.Narrative) models.TestOutcome {
	outcome := models.TestOutcome{Duration: res.duration}
	err := res.err

	if err == nil {
		outcome.Status = models.StatusPassed
		return outcome
	}
	if reason, ok := models.IsSkip(err); ok {
		outcome.Status = models.StatusSkipped
		outcome.Error = reason
		if strings.TrimSpace(reason) == "" {
			outcome.Error = defaultSkipReason
		}
		return outcome
	}

	outcome.Status = models.StatusFailed
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(bodyCtx.Err(), context.DeadlineExceeded):
		if timeout > 0 {
			outcome.Error = fmt.Sprintf("timed out after %s: %v", timeout, err)
		} else {
			outcome.Error = fmt.Sprintf("timed out: %v", err)
		}
	case errors.Is(err, context.Canceled):
		outcome.Error = cancelledReason
	default:
		outcome.Error = err.Error()
	}
	if strings.TrimSpace(outcome.Error) == "" {
		outcome.Error = fmt.Sprintf("test failed: %T", err)
	}
	n.Fail("%s", outcome.Error)
	return outcome
}

// recordSkipped records a case that never ran.
func (o *Orchestrator) recordSkipped(ctx context.Context, workerID int, tc TestCase, reason string) {
	o.startSection(workerID, tc)
	outcome := models.TestOutcome{
		TestID:    tc.ID,
		Name:      tc.DisplayName(),
		Status:    models.StatusSkipped,
		StartedAt: o.now(),
		Error:     reason,
		Attempts:  0,
		WorkerID:  workerID,
	}
	o.AfterTest(ctx, workerID, tc, outcome, nil)
}
