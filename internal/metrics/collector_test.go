package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/suiterun/internal/models"
)

func TestCollector_ObserveOutcome(t *testing.T) {
	c := NewCollector()
	c.ObserveOutcome(models.TestOutcome{TestID: "a", Status: models.StatusPassed, Duration: time.Second})
	c.ObserveOutcome(models.TestOutcome{TestID: "b", Status: models.StatusPassed})
	c.ObserveOutcome(models.TestOutcome{TestID: "c", Status: models.StatusFailed, Error: "x"})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.testsTotal.WithLabelValues("PASSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.testsTotal.WithLabelValues("FAILED")))
}

func TestCollector_DeliveriesAndSweeps(t *testing.T) {
	c := NewCollector()
	c.ObserveDelivery("telegram", false)
	c.ObserveDelivery("email", true)
	c.ObserveSweep("report", 2)
	c.ObserveSweep("report", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("telegram", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("email", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.deleted.WithLabelValues("report")))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector()
	c.ObserveOutcome(models.TestOutcome{TestID: "a", Status: models.StatusPassed})
	c.ObserveSummary(models.RunSummary{Total: 1, Passed: 1, FinishedAt: time.Unix(1700000000, 0)})

	path := filepath.Join(t.TempDir(), "textfile", "suiterun.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `suiterun_tests_total{status="PASSED"} 1`), text)
	assert.Contains(t, text, "suiterun_success_rate_percent 100")
	assert.Contains(t, text, "suiterun_last_run_timestamp_seconds 1.7e+09")
}
