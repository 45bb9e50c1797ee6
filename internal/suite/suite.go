// Package suite loads declarative HTTP check suites from YAML and turns
// them into executor test cases.
package suite

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/suiterun/internal/executor"
)

// Suite is a named list of checks.
type Suite struct {
	Name   string
	Checks []Check
}

// Check is one HTTP request with expectations.
type Check struct {
	ID          string
	Name        string
	Description string
	Category    string
	Method      string
	Path        string
	Headers     map[string]string
	Body        string
	Timeout     time.Duration
	Skip        string
	Expect      Expectation
}

// Expectation lists what the response must satisfy.
type Expectation struct {
	Status      int
	Contains    []string
	NotContains []string
	Headers     map[string]string
	MaxLatency  time.Duration
}

type yamlExpect struct {
	Status      int               `yaml:"status"`
	Contains    []string          `yaml:"contains"`
	NotContains []string          `yaml:"not_contains"`
	Headers     map[string]string `yaml:"headers"`
	MaxLatency  string            `yaml:"max_latency"`
}

type yamlCheck struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Method      string            `yaml:"method"`
	Path        string            `yaml:"path"`
	Headers     map[string]string `yaml:"headers"`
	Body        string            `yaml:"body"`
	Timeout     string            `yaml:"timeout"`
	Skip        string            `yaml:"skip"`
	Expect      yamlExpect        `yaml:"expect"`
}

type yamlSuite struct {
	Name  string      `yaml:"name"`
	Tests []yamlCheck `yaml:"tests"`
}

// Load reads and parses a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes suite YAML, applies defaults (GET, status 200) and
// validates ids, methods and durations.
func Parse(data []byte) (*Suite, error) {
	var raw yamlSuite
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if len(raw.Tests) == 0 {
		return nil, fmt.Errorf("suite has no tests")
	}

	s := &Suite{Name: raw.Name}
	seen := make(map[string]bool, len(raw.Tests))
	for i, rc := range raw.Tests {
		c, err := convertCheck(rc)
		if err != nil {
			return nil, fmt.Errorf("test %d (%s): %w", i+1, rc.ID, err)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate test id %q", c.ID)
		}
		seen[c.ID] = true
		s.Checks = append(s.Checks, c)
	}
	return s, nil
}

func convertCheck(rc yamlCheck) (Check, error) {
	c := Check{
		ID:          strings.TrimSpace(rc.ID),
		Name:        rc.Name,
		Description: rc.Description,
		Category:    rc.Category,
		Method:      strings.ToUpper(strings.TrimSpace(rc.Method)),
		Path:        rc.Path,
		Headers:     rc.Headers,
		Body:        rc.Body,
		Skip:        rc.Skip,
		Expect: Expectation{
			Status:      rc.Expect.Status,
			Contains:    rc.Expect.Contains,
			NotContains: rc.Expect.NotContains,
			Headers:     rc.Expect.Headers,
		},
	}
	if c.ID == "" {
		return c, fmt.Errorf("id is required")
	}
	if c.Path == "" {
		return c, fmt.Errorf("path is required")
	}
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	switch c.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions:
	default:
		return c, fmt.Errorf("unsupported method %q", c.Method)
	}
	if c.Expect.Status == 0 {
		c.Expect.Status = http.StatusOK
	}

	var err error
	if c.Timeout, err = parseDuration("timeout", rc.Timeout); err != nil {
		return c, err
	}
	if c.Expect.MaxLatency, err = parseDuration("expect.max_latency", rc.Expect.MaxLatency); err != nil {
		return c, err
	}
	return c, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0, got %v", field, d)
	}
	return d, nil
}

// Cases converts the checks into executor test cases.
func (s *Suite) Cases() []executor.TestCase {
	cases := make([]executor.TestCase, 0, len(s.Checks))
	for _, c := range s.Checks {
		c := c
		cases = append(cases, executor.TestCase{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Category:    c.Category,
			Timeout:     c.Timeout,
			Body:        c.run,
		})
	}
	return cases
}

func (c Check) run(ctx context.Context, t *executor.T) error {
	if c.Skip != "" {
		return t.Skip(c.Skip)
	}

	driver, err := t.HTTP()
	if err != nil {
		return err
	}

	header := http.Header{}
	for k, v := range c.Headers {
		header.Set(k, v)
	}
	var body []byte
	if c.Body != "" {
		body = []byte(c.Body)
	}

	t.Action("%s `%s`", c.Method, c.Path)
	resp, err := driver.Do(ctx, c.Method, c.Path, body, header)
	if err != nil {
		return err
	}
	t.Info("received **%d** in %s", resp.StatusCode, resp.Latency.Round(time.Millisecond))

	return c.Expect.verify(t, resp.StatusCode, resp.Header, resp.Body, resp.Latency)
}

func (e Expectation) verify(t *executor.T, status int, header http.Header, body []byte, latency time.Duration) error {
	t.Verify("status is %d", e.Status)
	if status != e.Status {
		return fmt.Errorf("expected status %d, got %d", e.Status, status)
	}
	for _, want := range e.Contains {
		t.Verify("body contains %q", want)
		if !bytes.Contains(body, []byte(want)) {
			return fmt.Errorf("body does not contain %q", want)
		}
	}
	for _, unwanted := range e.NotContains {
		t.Verify("body does not contain %q", unwanted)
		if bytes.Contains(body, []byte(unwanted)) {
			return fmt.Errorf("body contains %q", unwanted)
		}
	}
	for k, want := range e.Headers {
		t.Verify("header %s contains %q", k, want)
		if got := header.Get(k); !strings.Contains(got, want) {
			return fmt.Errorf("header %s is %q, want it to contain %q", k, got, want)
		}
	}
	if e.MaxLatency > 0 {
		t.Verify("latency under %s", e.MaxLatency)
		if latency > e.MaxLatency {
			return fmt.Errorf("latency %s exceeds %s", latency.Round(time.Millisecond), e.MaxLatency)
		}
	}
	t.Pass("all expectations met")
	return nil
}
