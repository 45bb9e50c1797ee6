package metrics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/harrison/suiterun/internal/filelock"
	"github.com/harrison/suiterun/internal/models"
)

const namespace = "suiterun"

// Collector holds the Prometheus series of a run on a private registry.
type Collector struct {
	registry      *prometheus.Registry
	testsTotal    *prometheus.CounterVec
	testDuration  *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	deleted       *prometheus.CounterVec
	successRate   prometheus.Gauge
	lastRun       prometheus.Gauge
}

// NewCollector registers the run collectors on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		testsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_total",
			Help:      "Test outcomes by status",
		}, []string{"status"}),
		testDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_duration_seconds",
			Help:      "Duration of the final attempt of each test",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and result",
		}, []string{"channel", "result"}),
		deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_deleted_total",
			Help:      "Artifacts removed by retention sweeps",
		}, []string{"kind"}),
		successRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "success_rate_percent",
			Help:      "Success rate of the last finished run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	c.registry.MustRegister(c.testsTotal, c.testDuration, c.notifications, c.deleted, c.successRate, c.lastRun)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveOutcome records a test outcome.
func (c *Collector) ObserveOutcome(o models.TestOutcome) {
	status := string(o.Status)
	c.testsTotal.WithLabelValues(status).Inc()
	c.testDuration.WithLabelValues(status).Observe(o.Duration.Seconds())
}

// ObserveDelivery records one notification attempt.
func (c *Collector) ObserveDelivery(channel string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.notifications.WithLabelValues(channel, result).Inc()
}

// ObserveSweep records files removed from an artifact directory.
func (c *Collector) ObserveSweep(kind string, deleted int) {
	c.deleted.WithLabelValues(kind).Add(float64(deleted))
}

// ObserveSummary records the final state of a run.
func (c *Collector) ObserveSummary(s models.RunSummary) {
	c.successRate.Set(s.SuccessRate())
	finished := s.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	c.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes every series in the Prometheus text format, for the
// node exporter textfile collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("encode %s: %w", family.GetName(), err)
		}
	}
	return filelock.AtomicWrite(path, buf.Bytes())
}
