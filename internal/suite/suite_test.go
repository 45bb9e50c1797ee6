package suite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/executor"
	"github.com/harrison/suiterun/internal/metrics"
	"github.com/harrison/suiterun/internal/models"
	"github.com/harrison/suiterun/internal/report"
	"github.com/harrison/suiterun/internal/session"
)

func TestLoad(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "storefront.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Storefront smoke", s.Name)
	require.Len(t, s.Checks, 4)

	home := s.Checks[0]
	assert.Equal(t, http.MethodGet, home.Method)
	assert.Equal(t, http.StatusOK, home.Expect.Status)
	assert.Equal(t, 5*time.Second, home.Expect.MaxLatency)

	brands := s.Checks[3]
	assert.Equal(t, http.MethodPost, brands.Method)
	assert.Equal(t, 201, brands.Expect.Status)
	assert.Equal(t, 2*time.Second, brands.Timeout)
	assert.Equal(t, "precondition failed", s.Checks[2].Skip)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no tests", "name: empty\n", "suite has no tests"},
		{"missing id", "tests:\n  - path: /\n", "id is required"},
		{"missing path", "tests:\n  - id: a\n", "path is required"},
		{"duplicate", "tests:\n  - id: a\n    path: /\n  - id: a\n    path: /x\n", "duplicate test id"},
		{"bad method", "tests:\n  - id: a\n    path: /\n    method: fetch\n", "unsupported method"},
		{"bad timeout", "tests:\n  - id: a\n    path: /\n    timeout: soon\n", "invalid timeout format"},
		{"bad yaml", "tests: [", "failed to parse suite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func storefront(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<title>Shop</title>")
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "no results")
	})
	mux.HandleFunc("/api/brands", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || string(body) != `{"limit": 5}` {
			http.Error(w, "error", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `["Nike","Puma"]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSuite_RunsAgainstServer(t *testing.T) {
	srv := storefront(t)
	s, err := Load(filepath.Join("testdata", "storefront.yaml"))
	require.NoError(t, err)

	root := t.TempDir()
	store := artifact.NewStore(filepath.Join(root, "reports"), filepath.Join(root, "screenshots"))
	lc, err := report.NewLifecycle(store, s.Name)
	require.NoError(t, err)

	o, err := executor.NewOrchestrator(executor.Dependencies{
		Sessions:  session.NewManager(session.DefaultRegistry()),
		Artifacts: store,
		Report:    lc,
		Metrics:   metrics.NewRunMetrics(),
	}, executor.Options{
		SuiteName: s.Name,
		Threads:   2,
		Session:   session.Options{EngineType: session.HTTPEngineType, BaseURL: srv.URL, PageLoadTimeout: 5 * time.Second},
	})
	require.NoError(t, err)

	summary, err := o.Run(context.Background(), s.Cases())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "50.0%", summary.SuccessRateString())

	require.Len(t, summary.Failures, 1)
	failed := summary.Failures[0]
	assert.Equal(t, "search", failed.TestID)
	assert.Equal(t, `body does not contain "Nike"`, failed.Error)
	assert.Equal(t, ".txt", filepath.Ext(failed.Screenshot), "http captures are stored as text")

	for _, oc := range summary.Outcomes {
		if oc.TestID == "checkout" {
			assert.Equal(t, models.StatusSkipped, oc.Status)
			assert.Equal(t, "precondition failed", oc.Error)
		}
	}
}
