package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/metrics"
	"github.com/harrison/suiterun/internal/models"
	"github.com/harrison/suiterun/internal/notify"
	"github.com/harrison/suiterun/internal/report"
	"github.com/harrison/suiterun/internal/session"
)

// Logger defines the interface for logging run progress and results.
type Logger interface {
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogRunStart(suite, runID string, total, threads int)
	LogTestStart(workerID int, testID string)
	LogTestResult(outcome models.TestOutcome)
	LogSweep(result artifact.SweepResult)
	LogSummary(summary models.RunSummary)
}

// HistoryRecorder persists finished runs.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, summary models.RunSummary) error
}

// Options tunes a run.
type Options struct {
	SuiteName string
	Threads   int
	Retries   int
	Session   session.Options

	// TestTimeout bounds each body unless the case sets its own.
	TestTimeout    time.Duration
	CaptureTimeout time.Duration

	// Zero retention limits use artifact.DefaultMaxKeep.
	ReportMaxKeep     int
	ScreenshotMaxKeep int
	LogDir            string
	LogMaxKeep        int

	MetricsTextfile string
	// HandleSignals cancels the run on SIGINT/SIGTERM.
	HandleSignals bool
}

// Dependencies are the components an Orchestrator drives. Collector,
// Dispatcher, History and Logger are optional.
type Dependencies struct {
	Sessions   *session.Manager
	Artifacts  *artifact.Store
	Report     *report.Lifecycle
	Metrics    *metrics.RunMetrics
	Collector  *metrics.Collector
	Dispatcher *notify.Dispatcher
	Channels   []notify.Channel
	History    HistoryRecorder
	Logger     Logger
}

// Orchestrator runs a suite on a fixed worker pool and drives the run
// lifecycle: BeforeRun, BeforeTest, AfterTest and AfterRun.
type Orchestrator struct {
	deps Dependencies
	opts Options
	now  func() time.Time

	runID     string
	startedAt time.Time

	// Deliveries of the last AfterRun.
	mu         sync.Mutex
	deliveries []notify.Delivery
}

// NewOrchestrator creates an Orchestrator. Sessions, Artifacts, Report and
// Metrics are required.
func NewOrchestrator(deps Dependencies, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("session manager cannot be nil")
	case deps.Artifacts == nil:
		return nil, errors.New("artifact store cannot be nil")
	case deps.Report == nil:
		return nil, errors.New("report lifecycle cannot be nil")
	case deps.Metrics == nil:
		return nil, errors.New("run metrics cannot be nil")
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.ReportMaxKeep <= 0 {
		opts.ReportMaxKeep = artifact.DefaultMaxKeep
	}
	if opts.ScreenshotMaxKeep <= 0 {
		opts.ScreenshotMaxKeep = artifact.DefaultMaxKeep
	}
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = 10 * time.Second
	}
	return &Orchestrator{deps: deps, opts: opts, now: time.Now}, nil
}

// RunID returns the id of the current or last run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Deliveries returns the notification results of the last run.
func (o *Orchestrator) Deliveries() []notify.Delivery {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notify.Delivery(nil), o.deliveries...)
}

// Run executes cases on Options.Threads workers and returns the summary.
// Every case produces exactly one outcome, including cases that never
// started because the run was cancelled. The returned error is non-nil
// only when the run could not start or was cancelled.
func (o *Orchestrator) Run(ctx context.Context, cases []TestCase) (models.RunSummary, error) {
	if err := validateCases(cases); err != nil {
		return models.RunSummary{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.opts.HandleSignals {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case <-sigChan:
				o.warn("Received interrupt signal, finishing running tests and skipping the rest...")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	if err := o.BeforeRun(ctx, len(cases)); err != nil {
		return models.RunSummary{}, err
	}

	o.runPool(ctx, cases)

	cancelled := ctx.Err() != nil
	summary := o.AfterRun(context.WithoutCancel(ctx))
	if cancelled {
		return summary, ErrRunCancelled
	}
	return summary, nil
}

// BeforeRun opens the report, sweeps artifact directories and resets the
// metrics. An error here is fatal: no worker has started.
func (o *Orchestrator) BeforeRun(ctx context.Context, total int) error {
	o.runID = uuid.NewString()
	o.startedAt = o.now()

	if _, err := o.deps.Report.Open(o.startedAt); err != nil {
		return fmt.Errorf("open report: %w", err)
	}

	o.sweepAll()

	o.deps.Metrics.Reset(o.runID, o.opts.SuiteName, o.startedAt)

	o.setEnvironment()
	if o.deps.Logger != nil {
		o.deps.Logger.LogRunStart(o.opts.SuiteName, o.runID, total, o.opts.Threads)
	}
	return nil
}

func (o *Orchestrator) sweepAll() {
	policies := []artifact.RetentionPolicy{}
	if dir, err := o.deps.Artifacts.Dir(artifact.KindReport); err == nil && dir != "" {
		policies = append(policies, artifact.ReportPolicy(dir, o.opts.ReportMaxKeep))
	}
	if dir, err := o.deps.Artifacts.Dir(artifact.KindScreenshot); err == nil && dir != "" {
		policies = append(policies, artifact.ScreenshotPolicy(dir, o.opts.ScreenshotMaxKeep))
	}
	if o.opts.LogDir != "" && o.opts.LogMaxKeep > 0 {
		policies = append(policies, artifact.LogPolicy(o.opts.LogDir, o.opts.LogMaxKeep))
	}

	for _, p := range policies {
		result, err := artifact.Sweep(p)
		if err != nil {
			o.warn(fmt.Sprintf("[WARNING] %s cleanup failed: %v", p.Kind, err))
			continue
		}
		if o.deps.Logger != nil {
			o.deps.Logger.LogSweep(result)
		}
		if o.deps.Collector != nil {
			o.deps.Collector.ObserveSweep(p.Kind, result.Deleted)
		}
	}
}

func (o *Orchestrator) setEnvironment() {
	s := o.opts.Session
	env := map[string]string{
		"Run ID":   o.runID,
		"Engine":   s.EngineType,
		"Headless": fmt.Sprintf("%t", s.EffectiveHeadless()),
		"Threads":  fmt.Sprintf("%d", o.opts.Threads),
		"Retries":  fmt.Sprintf("%d", o.opts.Retries),
	}
	if s.BaseURL != "" {
		env["Base URL"] = s.BaseURL
	}
	if host, err := os.Hostname(); err == nil {
		env["Host"] = host
	}
	for k, v := range env {
		if err := o.deps.Report.SetEnvironment(k, v); err != nil {
			o.warn(fmt.Sprintf("[WARNING] report environment: %v", err))
			return
		}
	}
}

// BeforeTest starts the report section of tc and acquires a fresh session
// for workerID.
func (o *Orchestrator) BeforeTest(ctx context.Context, workerID int, tc TestCase) (*session.Session, error) {
	o.startSection(workerID, tc)
	if o.deps.Logger != nil {
		o.deps.Logger.LogTestStart(workerID, tc.ID)
	}

	sess, err := o.deps.Sessions.Acquire(ctx, workerID, o.opts.Session)
	if err != nil {
		return nil, NewTestError(tc.ID, PhaseSetup, "acquire session", err)
	}
	return sess, nil
}

func (o *Orchestrator) startSection(workerID int, tc TestCase) {
	info := report.SectionInfo{TestID: tc.ID, Name: tc.DisplayName(), Description: tc.Description, Category: tc.Category}
	if err := o.deps.Report.StartSection(info, workerID, o.now()); err != nil {
		o.warn(NewTestError(tc.ID, PhaseReport, "start report section", err).Error())
	}
}

// AfterTest captures a screenshot for a failed outcome, records the
// outcome and writes the report entry. The worker's session is released
// whatever happens. It returns the outcome as recorded.
func (o *Orchestrator) AfterTest(ctx context.Context, workerID int, tc TestCase, outcome models.TestOutcome, steps []models.Step) models.TestOutcome {
	defer func() {
		if err := o.deps.Sessions.Release(workerID); err != nil {
			o.warn(NewTestError(tc.ID, PhaseTeardown, "release session", err).Error())
		}
	}()

	if outcome.Status == models.StatusFailed {
		if path, err := o.captureFailure(ctx, workerID, tc); err != nil {
			o.warn(NewTestError(tc.ID, PhaseCapture, "failure screenshot", err).Error())
		} else if path != "" {
			outcome = outcome.WithScreenshot(path)
		}
	}

	o.deps.Metrics.RecordOutcome(outcome)
	if o.deps.Collector != nil {
		o.deps.Collector.ObserveOutcome(outcome)
	}
	if err := o.deps.Report.AppendTestEntry(outcome, steps); err != nil {
		o.warn(NewTestError(tc.ID, PhaseReport, "append report entry", err).Error())
	}
	if o.deps.Logger != nil {
		o.deps.Logger.LogTestResult(outcome)
	}
	return outcome
}

func (o *Orchestrator) captureFailure(ctx context.Context, workerID int, tc TestCase) (path string, err error) {
	sess, ok := o.deps.Sessions.Get(workerID)
	if !ok {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CaptureTimeout)
	defer cancel()
	data, err := sess.Capture(captureCtx)
	if err != nil {
		return "", err
	}
	return o.deps.Artifacts.SaveScreenshot(tc.ID, data)
}

// AfterRun flushes the report, publishes metrics, dispatches
// notifications and records history. Failures are logged, never returned.
func (o *Orchestrator) AfterRun(ctx context.Context) models.RunSummary {
	summary := o.deps.Metrics.Snapshot(o.now())

	path, err := o.deps.Report.Flush(summary)
	if err != nil {
		o.error(fmt.Sprintf("[ERROR] report flush failed: %v", err))
	}
	summary.ReportPath = path

	if o.deps.Collector != nil {
		o.deps.Collector.ObserveSummary(summary)
	}

	if o.deps.Logger != nil {
		o.deps.Logger.LogSummary(summary)
	}

	if o.deps.Dispatcher != nil && len(o.deps.Channels) > 0 {
		if o.deps.Collector != nil {
			o.deps.Dispatcher.OnDelivery(o.deps.Collector.ObserveDelivery)
		}
		deliveries := o.deps.Dispatcher.Dispatch(ctx, summary, o.deps.Channels)
		o.mu.Lock()
		o.deliveries = deliveries
		o.mu.Unlock()
	}

	if o.deps.Collector != nil && o.opts.MetricsTextfile != "" {
		if err := o.deps.Collector.WriteTextfile(o.opts.MetricsTextfile); err != nil {
			o.warn(fmt.Sprintf("[WARNING] metrics textfile: %v", err))
		}
	}

	if o.deps.History != nil {
		if err := o.deps.History.RecordRun(ctx, summary); err != nil {
			o.warn(fmt.Sprintf("[WARNING] run history not recorded: %v", err))
		}
	}

	if err := o.deps.Sessions.CloseAll(); err != nil {
		o.warn(fmt.Sprintf("[WARNING] leftover sessions: %v", err))
	}
	return summary
}

func (o *Orchestrator) warn(msg string) {
	if o.deps.Logger != nil {
		o.deps.Logger.LogWarn(msg)
	}
}

func (o *Orchestrator) error(msg string) {
	if o.deps.Logger != nil {
		o.deps.Logger.LogError(msg)
	}
}
