package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/models"
	"github.com/harrison/suiterun/internal/session"
)

// TestCase is a unit of work the orchestrator runs on one worker.
type TestCase struct {
	ID          string
	Name        string
	Description string
	Category    string
	// Timeout bounds the body; zero uses the orchestrator default.
	Timeout time.Duration
	Body    func(ctx context.Context, t *T) error
}

// DisplayName returns Name, falling back to ID.
func (tc TestCase) DisplayName() string {
	if tc.Name != "" {
		return tc.Name
	}
	return tc.ID
}

// T is handed to a test body. It exposes the worker's session and the
// narrative that ends up in the report.
type T struct {
	*models.Narrative

	TestID   string
	WorkerID int
	Attempt  int
	Session  *session.Session

	store *artifact.Store
}

// HTTP returns the session driver when the session runs the http engine.
func (t *T) HTTP() (*session.HTTPDriver, error) {
	if t.Session == nil {
		return nil, errors.New("no active session")
	}
	d, ok := t.Session.Driver().(*session.HTTPDriver)
	if !ok {
		return nil, fmt.Errorf("session engine %q is not http", t.Session.Options.EngineType)
	}
	return d, nil
}

// Screenshot captures the session and stores it as {name}_{ts}. The path
// is recorded in the narrative.
func (t *T) Screenshot(ctx context.Context, name string) (string, error) {
	if t.Session == nil {
		return "", errors.New("no active session")
	}
	data, err := t.Session.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	path, err := t.store.SaveScreenshot(name, data)
	if err != nil {
		return "", err
	}
	t.Info("screenshot saved: `%s`", path)
	return path, nil
}

// Skip is shorthand for returning models.Skip(reason) from a body.
func (t *T) Skip(reason string) error {
	t.Warn("skipped: %s", reason)
	return models.Skip(reason)
}

func validateCases(cases []TestCase) error {
	var problems []string
	seen := make(map[string]bool, len(cases))
	for i, tc := range cases {
		switch {
		case tc.ID == "":
			problems = append(problems, fmt.Sprintf("case %d has no id", i))
		case seen[tc.ID]:
			problems = append(problems, fmt.Sprintf("duplicate test id %q", tc.ID))
		}
		if tc.Body == nil {
			problems = append(problems, fmt.Sprintf("test %q has no body", tc.ID))
		}
		seen[tc.ID] = true
	}
	if len(problems) > 0 {
		return &SuiteError{Problems: problems}
	}
	return nil
}
