package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/metrics"
	"github.com/harrison/suiterun/internal/models"
	"github.com/harrison/suiterun/internal/notify"
	"github.com/harrison/suiterun/internal/report"
	"github.com/harrison/suiterun/internal/session"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}

type fakeDriver struct {
	quits atomic.Int32
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error { return nil }
func (d *fakeDriver) Capture(ctx context.Context) ([]byte, error)   { return pngBytes, nil }
func (d *fakeDriver) Quit() error {
	d.quits.Add(1)
	return nil
}

type fakeEngine struct {
	mu      sync.Mutex
	drivers []*fakeDriver
}

func (e *fakeEngine) Start(ctx context.Context, opts session.Options) (session.Driver, error) {
	d := &fakeDriver{}
	e.mu.Lock()
	e.drivers = append(e.drivers, d)
	e.mu.Unlock()
	return d, nil
}

func (e *fakeEngine) started() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.drivers)
}

func (e *fakeEngine) allQuitOnce(t *testing.T) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, d := range e.drivers {
		assert.Equal(t, int32(1), d.quits.Load(), "driver %d quit count", i)
	}
}

type recordingChannel struct {
	name      string
	err       error
	summaries []models.RunSummary
}

func (c *recordingChannel) Name() string          { return c.name }
func (c *recordingChannel) Ready() (bool, string) { return true, "" }
func (c *recordingChannel) Send(ctx context.Context, s models.RunSummary) error {
	c.summaries = append(c.summaries, s)
	return c.err
}

type memoryHistory struct {
	runs []models.RunSummary
}

func (h *memoryHistory) RecordRun(ctx context.Context, s models.RunSummary) error {
	h.runs = append(h.runs, s)
	return nil
}

type fixture struct {
	root      string
	reportDir string
	shotDir   string
	engine    *fakeEngine
	sessions  *session.Manager
	lifecycle *report.Lifecycle
	metrics   *metrics.RunMetrics
	channels  []notify.Channel
	history   *memoryHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:      root,
		reportDir: filepath.Join(root, "reports"),
		shotDir:   filepath.Join(root, "screenshots"),
		engine:    &fakeEngine{},
		metrics:   metrics.NewRunMetrics(),
		history:   &memoryHistory{},
	}
	registry := session.NewRegistry()
	registry.Register("fake", f.engine)
	f.sessions = session.NewManager(registry)

	lc, err := report.NewLifecycle(artifact.NewStore(f.reportDir, f.shotDir), "Test Report")
	require.NoError(t, err)
	f.lifecycle = lc
	return f
}

func (f *fixture) orchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	if opts.Session.EngineType == "" {
		opts.Session.EngineType = "fake"
	}
	o, err := NewOrchestrator(Dependencies{
		Sessions:   f.sessions,
		Artifacts:  artifact.NewStore(f.reportDir, f.shotDir),
		Report:     f.lifecycle,
		Metrics:    f.metrics,
		Collector:  metrics.NewCollector(),
		Dispatcher: notify.NewDispatcher(nil, time.Second),
		Channels:   f.channels,
		History:    f.history,
	}, opts)
	require.NoError(t, err)
	return o
}

func passing(id string) TestCase {
	return TestCase{ID: id, Body: func(ctx context.Context, t *T) error { return nil }}
}

func TestRun_MixedOutcomes(t *testing.T) {
	f := newFixture(t)
	ch := &recordingChannel{name: "recorder"}
	f.channels = []notify.Channel{ch}
	o := f.orchestrator(t, Options{SuiteName: "smoke", Threads: 2})

	cases := []TestCase{
		{ID: "t1", Name: "Home page", Body: func(ctx context.Context, t *T) error {
			t.Step("open home page")
			time.Sleep(50 * time.Millisecond)
			return nil
		}},
		{ID: "t2", Name: "Search", Body: func(ctx context.Context, t *T) error {
			t.Action("search for shoes")
			return errors.New("element not found")
		}},
		{ID: "t3", Name: "Checkout", Body: func(ctx context.Context, t *T) error {
			return t.Skip("precondition failed")
		}},
	}

	summary, err := o.Run(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "33.3%", summary.SuccessRateString())
	assert.True(t, summary.Consistent())

	byID := map[string]models.TestOutcome{}
	for _, oc := range summary.Outcomes {
		require.NoError(t, oc.Validate())
		byID[oc.TestID] = oc
	}
	assert.GreaterOrEqual(t, byID["t1"].Duration, 50*time.Millisecond)
	assert.Equal(t, "element not found", byID["t2"].Error)
	assert.Equal(t, "precondition failed", byID["t3"].Error)

	shot := byID["t2"].Screenshot
	require.NotEmpty(t, shot, "failed test must carry a screenshot")
	assert.True(t, strings.HasPrefix(filepath.Base(shot), "t2_2"))
	assert.Equal(t, ".png", filepath.Ext(shot))
	assert.FileExists(t, shot)
	assert.Empty(t, byID["t1"].Screenshot)

	require.NotEmpty(t, summary.ReportPath)
	html, err := os.ReadFile(summary.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "element not found")
	assert.Contains(t, string(html), "open home page")

	require.Len(t, ch.summaries, 1)
	text := notify.SummaryText(ch.summaries[0])
	assert.Contains(t, text, "[PASS] Home page")
	assert.Contains(t, text, "[FAIL] Search")
	assert.Contains(t, text, "ERROR: element not found")
	assert.Contains(t, text, "[SKIP] Checkout")
	assert.Contains(t, text, "REASON: precondition failed")

	assert.Equal(t, 0, f.sessions.Active())
	assert.Equal(t, 3, f.engine.started())
	f.engine.allQuitOnce(t)

	require.Len(t, f.history.runs, 1)
	assert.Equal(t, o.RunID(), f.history.runs[0].RunID)
}

func TestBeforeRun_KeepsNewestReports(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.reportDir, 0755))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		path := filepath.Join(f.reportDir, artifact.FileName(artifact.ReportPrefix, at, artifact.ReportExtension))
		require.NoError(t, os.WriteFile(path, []byte("old"), 0644))
		require.NoError(t, os.Chtimes(path, at, at))
	}

	o := f.orchestrator(t, Options{ReportMaxKeep: 3})
	require.NoError(t, o.BeforeRun(context.Background(), 1))

	policy := artifact.ReportPolicy(f.reportDir, 3)
	countReports := func() int {
		entries, err := os.ReadDir(f.reportDir)
		require.NoError(t, err)
		n := 0
		for _, e := range entries {
			if policy.Matches(e.Name()) {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 3, countReports())

	summary := o.AfterRun(context.Background())
	assert.FileExists(t, summary.ReportPath)
	assert.Equal(t, 4, countReports())
}

func TestRun_RetriesUseFreshSession(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{Threads: 1, Retries: 2})

	var attempts atomic.Int32
	var sessions sync.Map
	flaky := TestCase{ID: "flaky", Body: func(ctx context.Context, t *T) error {
		sessions.Store(t.Session, true)
		if attempts.Add(1) < 3 {
			return errors.New("stale element")
		}
		return nil
	}}

	summary, err := o.Run(context.Background(), []TestCase{flaky})
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, models.StatusPassed, summary.Outcomes[0].Status)
	assert.Equal(t, 3, summary.Outcomes[0].Attempts)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 3, f.engine.started())
	f.engine.allQuitOnce(t)

	distinct := 0
	sessions.Range(func(_, _ interface{}) bool { distinct++; return true })
	assert.Equal(t, 3, distinct)
}

func TestRun_RetriesExhausted(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{Threads: 1, Retries: 1})

	summary, err := o.Run(context.Background(), []TestCase{{ID: "broken", Body: func(ctx context.Context, t *T) error {
		return errors.New("still broken")
	}}})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, models.StatusFailed, summary.Outcomes[0].Status)
	assert.Equal(t, 2, summary.Outcomes[0].Attempts)
	assert.Equal(t, 1, summary.Failed)
}

func TestRun_PanicBecomesFailed(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{Threads: 2})

	summary, err := o.Run(context.Background(), []TestCase{
		{ID: "boom", Body: func(ctx context.Context, t *T) error {
			var m map[string]int
			m["x"] = 1
			return nil
		}},
		passing("ok"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Passed)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Error, "panic")
	assert.Equal(t, 0, f.sessions.Active())
}

func TestRun_EmptyMessagesGetDefaults(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{Threads: 2})

	summary, err := o.Run(context.Background(), []TestCase{
		{ID: "empty", Body: func(ctx context.Context, t *T) error {
			return errors.New("")
		}},
		{ID: "skipempty", Body: func(ctx context.Context, t *T) error {
			return t.Skip("")
		}},
	})
	require.NoError(t, err)

	byID := map[string]models.TestOutcome{}
	for _, oc := range summary.Outcomes {
		assert.NoError(t, oc.Validate(), oc.TestID)
		byID[oc.TestID] = oc
	}
	assert.Equal(t, models.StatusFailed, byID["empty"].Status)
	assert.Equal(t, "test failed: *errors.errorString", byID["empty"].Error)
	assert.Equal(t, models.StatusSkipped, byID["skipempty"].Status)
	assert.Equal(t, "skipped", byID["skipempty"].Error)
}

func TestRun_TimeoutBecomesFailed(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{Threads: 1, TestTimeout: 30 * time.Millisecond})

	summary, err := o.Run(context.Background(), []TestCase{{ID: "slow", Body: func(ctx context.Context, t *T) error {
		<-ctx.Done()
		return ctx.Err()
	}}})
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Error, "timed out after 30ms")
}

func TestRun_UnsupportedEngineFailsEveryTest(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{Threads: 2, Session: session.Options{EngineType: "netscape"}})

	summary, err := o.Run(context.Background(), []TestCase{passing("a"), passing("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Failed)
	for _, oc := range summary.Failures {
		assert.Contains(t, oc.Error, "unsupported engine")
		assert.Empty(t, oc.Screenshot)
	}
}

func TestRun_CancelledRunSkipsUnstartedCases(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{Threads: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := o.Run(ctx, []TestCase{passing("a"), passing("b"), passing("c")})
	assert.True(t, errors.Is(err, ErrRunCancelled))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Skipped)
	for _, oc := range summary.Outcomes {
		assert.Equal(t, "run cancelled", oc.Error)
	}
	assert.FileExists(t, summary.ReportPath)
}

func TestRun_InvalidSuite(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{})

	_, err := o.Run(context.Background(), []TestCase{passing("a"), passing("a"), {ID: "nobody"}})
	var se *SuiteError
	require.True(t, errors.As(err, &se))
	assert.Len(t, se.Problems, 2)
	assert.Equal(t, report.StateUncreated, f.lifecycle.State())
}

func TestRun_WorkersOwnTheirSessions(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, Options{Threads: 3})

	var mu sync.Mutex
	workers := map[int]bool{}
	var cases []TestCase
	for i := 0; i < 12; i++ {
		cases = append(cases, TestCase{ID: fmt.Sprintf("c%02d", i), Body: func(ctx context.Context, t *T) error {
			if t.Session.WorkerID != t.WorkerID {
				return fmt.Errorf("session of worker %d used by worker %d", t.Session.WorkerID, t.WorkerID)
			}
			mu.Lock()
			workers[t.WorkerID] = true
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			return nil
		}})
	}

	summary, err := o.Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, 12, summary.Passed)
	for id := range workers {
		assert.True(t, id >= 1 && id <= 3, "worker id %d out of range", id)
	}
}

func TestRun_NotifiesEveryChannelAfterJoin(t *testing.T) {
	f := newFixture(t)
	broken := &recordingChannel{name: "broken", err: errors.New("502")}
	ok := &recordingChannel{name: "ok"}
	f.channels = []notify.Channel{broken, ok}
	o := f.orchestrator(t, Options{Threads: 2})

	_, err := o.Run(context.Background(), []TestCase{passing("a"), passing("b")})
	require.NoError(t, err)

	require.Len(t, ok.summaries, 1)
	assert.Equal(t, 2, ok.summaries[0].Total)
	assert.NotEmpty(t, ok.summaries[0].ReportPath)

	deliveries := o.Deliveries()
	require.Len(t, deliveries, 2)
	assert.Equal(t, notify.DeliveryFailed, deliveries[0].Status)
	assert.Equal(t, notify.DeliverySent, deliveries[1].Status)
}

func TestNewOrchestrator_RequiresDependencies(t *testing.T) {
	_, err := NewOrchestrator(Dependencies{}, Options{})
	assert.Error(t, err)
}
