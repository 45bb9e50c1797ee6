// Package report builds the single HTML report of a run. Workers write
// their own sections concurrently; the document is rendered once at Flush.
package report

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/filelock"
	"github.com/harrison/suiterun/internal/models"
)

var (
	// ErrSectionOwned is returned when a worker writes a section another worker started.
	ErrSectionOwned = errors.New("report section is owned by another worker")
	// ErrReportFlushed is returned for writes after the report was flushed.
	ErrReportFlushed = errors.New("report already flushed")
	// ErrNotOpen is returned for section writes before Open.
	ErrNotOpen = errors.New("report not open")
	// ErrUnknownSection is returned when finalizing a section that was never started.
	ErrUnknownSection = errors.New("report section not started")
	// ErrSectionFinalized is returned when a section receives a second outcome.
	ErrSectionFinalized = errors.New("report section already finalized")
)

// State is the lifecycle state of the report.
type State int

const (
	StateUncreated State = iota
	StateOpen
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateUncreated:
		return "UNCREATED"
	case StateOpen:
		return "OPEN"
	case StateFlushed:
		return "FLUSHED"
	default:
		return "UNKNOWN"
	}
}

// SectionInfo describes the test a section belongs to.
type SectionInfo struct {
	TestID      string
	Name        string
	Description string
	Category    string
}

// Section is the part of the report written by one test case.
type Section struct {
	SectionInfo
	WorkerID  int
	StartedAt time.Time
	Outcome   *models.TestOutcome
	Steps     []models.Step
}

// Document is the in-memory report of one run.
type Document struct {
	Path      string
	Title     string
	CreatedAt time.Time

	mu       sync.Mutex
	sections map[string]*Section
	order    []string
	env      map[string]string
}

// Sections returns copies of the sections in start order.
func (d *Document) Sections() []Section {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Section, 0, len(d.order))
	for _, id := range d.order {
		s := *d.sections[id]
		s.Steps = append([]models.Step(nil), s.Steps...)
		out = append(out, s)
	}
	return out
}

// Environment returns the environment entries sorted by key.
func (d *Document) Environment() [][2]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.env))
	for k := range d.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, d.env[k]})
	}
	return out
}

// Lifecycle guards the report document through UNCREATED, OPEN and FLUSHED.
type Lifecycle struct {
	store    *artifact.Store
	title    string
	renderer *Renderer

	mu    sync.Mutex
	state State
	doc   *Document
	path  string
}

// NewLifecycle creates a lifecycle writing into the report directory of store.
func NewLifecycle(store *artifact.Store, title string) (*Lifecycle, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = "Automation Test Report"
	}
	return &Lifecycle{store: store, title: title, renderer: renderer}, nil
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Open creates the document on first call; later calls return the same one.
// The report path embeds the creation timestamp.
func (l *Lifecycle) Open(now time.Time) (*Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateOpen:
		return l.doc, nil
	case StateFlushed:
		return nil, ErrReportFlushed
	}
	l.doc = &Document{
		Path:      l.store.ReportPath(now),
		Title:     l.title,
		CreatedAt: now,
		sections:  make(map[string]*Section),
		env:       make(map[string]string),
	}
	l.state = StateOpen
	return l.doc, nil
}

// Path returns the report path, or "" before Open.
func (l *Lifecycle) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.path != "" {
		return l.path
	}
	if l.doc != nil {
		return l.doc.Path
	}
	return ""
}

func (l *Lifecycle) openDoc() (*Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateUncreated:
		return nil, ErrNotOpen
	case StateFlushed:
		return nil, ErrReportFlushed
	}
	return l.doc, nil
}

// SetEnvironment records a key shown in the environment table.
func (l *Lifecycle) SetEnvironment(key, value string) error {
	doc, err := l.openDoc()
	if err != nil {
		return err
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	doc.env[key] = value
	return nil
}

// StartSection begins the section of a test on behalf of workerID. A worker
// restarting its own unfinished section (a retry) resets it.
func (l *Lifecycle) StartSection(info SectionInfo, workerID int, now time.Time) error {
	if info.TestID == "" {
		return errors.New("section test id is required")
	}
	doc, err := l.openDoc()
	if err != nil {
		return err
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()
	if existing, ok := doc.sections[info.TestID]; ok {
		if existing.WorkerID != workerID {
			return fmt.Errorf("%s (worker %d): %w", info.TestID, existing.WorkerID, ErrSectionOwned)
		}
		if existing.Outcome != nil {
			return fmt.Errorf("%s: %w", info.TestID, ErrSectionFinalized)
		}
		existing.SectionInfo = info
		existing.StartedAt = now
		existing.Steps = nil
		return nil
	}
	doc.sections[info.TestID] = &Section{SectionInfo: info, WorkerID: workerID, StartedAt: now}
	doc.order = append(doc.order, info.TestID)
	return nil
}

// AppendTestEntry finalizes the section of outcome.TestID with the outcome
// and the narrative steps. Only the worker that started the section may
// finalize it, and only once.
func (l *Lifecycle) AppendTestEntry(outcome models.TestOutcome, steps []models.Step) error {
	doc, err := l.openDoc()
	if err != nil {
		return err
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()
	section, ok := doc.sections[outcome.TestID]
	if !ok {
		return fmt.Errorf("%s: %w", outcome.TestID, ErrUnknownSection)
	}
	if section.WorkerID != outcome.WorkerID {
		return fmt.Errorf("%s (worker %d): %w", outcome.TestID, section.WorkerID, ErrSectionOwned)
	}
	if section.Outcome != nil {
		return fmt.Errorf("%s: %w", outcome.TestID, ErrSectionFinalized)
	}
	o := outcome
	section.Outcome = &o
	section.Steps = append([]models.Step(nil), steps...)
	return nil
}

// Flush renders and writes the report once. Later calls return the same
// path without writing. Flushing an unopened report opens it at the run
// start so an empty run still produces a document.
func (l *Lifecycle) Flush(summary models.RunSummary) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateFlushed:
		return l.path, nil
	case StateUncreated:
		at := summary.StartedAt
		if at.IsZero() {
			at = time.Now()
		}
		l.doc = &Document{
			Path:      l.store.ReportPath(at),
			Title:     l.title,
			CreatedAt: at,
			sections:  make(map[string]*Section),
			env:       make(map[string]string),
		}
	}

	data, err := l.renderer.Render(l.doc, summary)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	if err := filelock.LockedWrite(l.doc.Path, data); err != nil {
		return "", &artifact.IOError{Kind: artifact.KindReport, Path: l.doc.Path, Err: err}
	}

	l.state = StateFlushed
	l.path = l.doc.Path
	return l.path, nil
}
