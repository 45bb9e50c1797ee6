package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/models"
)

var runStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

func newLifecycle(t *testing.T) (*Lifecycle, string) {
	t.Helper()
	root := t.TempDir()
	store := artifact.NewStore(filepath.Join(root, "reports"), filepath.Join(root, "screenshots"))
	l, err := NewLifecycle(store, "Smoke Report")
	require.NoError(t, err)
	return l, root
}

func TestLifecycle_OpenIsIdempotent(t *testing.T) {
	l, _ := newLifecycle(t)
	assert.Equal(t, StateUncreated, l.State())

	var wg sync.WaitGroup
	docs := make([]*Document, 8)
	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := l.Open(runStart.Add(time.Duration(i) * time.Second))
			assert.NoError(t, err)
			docs[i] = doc
		}(i)
	}
	wg.Wait()

	for _, d := range docs[1:] {
		assert.Same(t, docs[0], d)
	}
	assert.Equal(t, StateOpen, l.State())
	assert.True(t, strings.HasPrefix(filepath.Base(l.Path()), "Enhanced_AutomationReport_"))
}

func TestLifecycle_SectionOwnership(t *testing.T) {
	l, _ := newLifecycle(t)
	_, err := l.Open(runStart)
	require.NoError(t, err)

	require.NoError(t, l.StartSection(SectionInfo{TestID: "t1", Name: "Login"}, 1, runStart))

	err = l.StartSection(SectionInfo{TestID: "t1"}, 2, runStart)
	assert.True(t, errors.Is(err, ErrSectionOwned))

	err = l.AppendTestEntry(models.TestOutcome{TestID: "t1", Status: models.StatusPassed, WorkerID: 2}, nil)
	assert.True(t, errors.Is(err, ErrSectionOwned))

	require.NoError(t, l.AppendTestEntry(models.TestOutcome{TestID: "t1", Status: models.StatusPassed, WorkerID: 1}, nil))

	err = l.AppendTestEntry(models.TestOutcome{TestID: "t1", Status: models.StatusPassed, WorkerID: 1}, nil)
	assert.True(t, errors.Is(err, ErrSectionFinalized))

	err = l.AppendTestEntry(models.TestOutcome{TestID: "nope", Status: models.StatusPassed, WorkerID: 1}, nil)
	assert.True(t, errors.Is(err, ErrUnknownSection))
}

func TestLifecycle_RetryRestartsOwnSection(t *testing.T) {
	l, _ := newLifecycle(t)
	_, err := l.Open(runStart)
	require.NoError(t, err)

	require.NoError(t, l.StartSection(SectionInfo{TestID: "t1"}, 1, runStart))
	require.NoError(t, l.StartSection(SectionInfo{TestID: "t1"}, 1, runStart.Add(time.Second)))

	doc, _ := l.Open(runStart)
	sections := doc.Sections()
	require.Len(t, sections, 1)
	assert.Equal(t, runStart.Add(time.Second), sections[0].StartedAt)
}

func TestLifecycle_WritesBeforeOpen(t *testing.T) {
	l, _ := newLifecycle(t)
	err := l.StartSection(SectionInfo{TestID: "t1"}, 1, runStart)
	assert.True(t, errors.Is(err, ErrNotOpen))
}

func TestLifecycle_FlushWritesOnce(t *testing.T) {
	l, root := newLifecycle(t)
	_, err := l.Open(runStart)
	require.NoError(t, err)
	require.NoError(t, l.SetEnvironment("Engine", "http"))

	shot := filepath.Join(root, "screenshots", "t2_2026-03-01_10-00-01.png")
	require.NoError(t, l.StartSection(SectionInfo{TestID: "t1", Name: "Home page"}, 1, runStart))
	require.NoError(t, l.StartSection(SectionInfo{TestID: "t2", Name: "Search"}, 2, runStart))

	n := models.NewNarrative()
	n.Step("open **home** page")
	n.Pass("title verified")
	require.NoError(t, l.AppendTestEntry(models.TestOutcome{
		TestID: "t1", Status: models.StatusPassed, WorkerID: 1, Duration: 1200 * time.Millisecond, Attempts: 1,
	}, n.Steps()))
	require.NoError(t, l.AppendTestEntry(models.TestOutcome{
		TestID: "t2", Status: models.StatusFailed, WorkerID: 2, Error: "element not found", Screenshot: shot, Attempts: 1,
	}, nil))

	summary := models.RunSummary{Total: 2, Passed: 1, Failed: 1, StartedAt: runStart}
	path, err := l.Flush(summary)
	require.NoError(t, err)
	assert.Equal(t, StateFlushed, l.State())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "Smoke Report")
	assert.Contains(t, html, "<strong>home</strong>")
	assert.Contains(t, html, "element not found")
	assert.Contains(t, html, `src="../screenshots/t2_2026-03-01_10-00-01.png"`)
	assert.Contains(t, html, "Success rate: 50.0%")
	assert.Contains(t, html, "<th>Engine</th><td>http</td>")

	info, err := os.Stat(path)
	require.NoError(t, err)

	// Second flush is a no-op returning the same path
	again, err := l.Flush(models.RunSummary{Total: 99})
	require.NoError(t, err)
	assert.Equal(t, path, again)
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), info2.ModTime())
	data2, _ := os.ReadFile(path)
	assert.Equal(t, data, data2)

	err = l.StartSection(SectionInfo{TestID: "t3"}, 1, runStart)
	assert.True(t, errors.Is(err, ErrReportFlushed))
	_, err = l.Open(runStart)
	assert.True(t, errors.Is(err, ErrReportFlushed))
}

func TestLifecycle_FlushWithoutOpen(t *testing.T) {
	l, _ := newLifecycle(t)

	path, err := l.Flush(models.RunSummary{StartedAt: runStart})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "No tests were executed.")
	assert.Equal(t, path, l.Path())
}

func TestRenderer_DropsRawHTML(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	out := string(r.renderMarkdown("click <script>alert(1)</script> now"))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "click")
}
