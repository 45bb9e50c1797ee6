package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionActive is returned when a worker acquires while still holding a session.
var ErrSessionActive = errors.New("worker already owns an active session")

// State is the lifecycle state of a worker's session slot.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// SessionError reports an engine that failed to start or crashed. The
// orchestrator turns it into a FAILED outcome for the affected test.
type SessionError struct {
	WorkerID int
	Engine   string
	Op       string // start, navigate, quit
	Err      error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s failed (worker %d, engine %s): %v", e.Op, e.WorkerID, e.Engine, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsSessionError reports whether err is or wraps a SessionError.
func IsSessionError(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// Session is one engine instance owned by one worker.
type Session struct {
	WorkerID  int
	Options   Options
	StartedAt time.Time
	driver    Driver
}

// Driver returns the engine handle. Test bodies type-assert it to the
// concrete driver of their engine, e.g. *HTTPDriver.
func (s *Session) Driver() Driver {
	return s.driver
}

// Navigate loads url in the session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.driver.Navigate(ctx, url)
}

// Capture returns a screenshot (or equivalent snapshot) of the session.
func (s *Session) Capture(ctx context.Context) ([]byte, error) {
	return s.driver.Capture(ctx)
}

// Manager hands out one session per worker and guarantees teardown.
type Manager struct {
	registry *Registry

	mu     sync.Mutex
	slots  map[int]*Session
	states map[int]State

	now func() time.Time
}

// NewManager creates a Manager resolving engines from registry.
func NewManager(registry *Registry) *Manager {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Manager{
		registry: registry,
		slots:    make(map[int]*Session),
		states:   make(map[int]State),
		now:      time.Now,
	}
}

// Acquire starts a new session for workerID. The engine type must be
// registered; otherwise the error wraps ErrUnsupportedEngine. When
// opts.BaseURL is set the session navigates there before being returned.
func (m *Manager) Acquire(ctx context.Context, workerID int, opts Options) (*Session, error) {
	m.mu.Lock()
	if _, busy := m.slots[workerID]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("worker %d: %w", workerID, ErrSessionActive)
	}
	m.mu.Unlock()

	engine, err := m.registry.Lookup(opts.EngineType)
	if err != nil {
		return nil, err
	}

	startCtx := ctx
	if opts.PageLoadTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, opts.PageLoadTimeout)
		defer cancel()
	}

	driver, err := engine.Start(startCtx, opts)
	if err != nil {
		return nil, &SessionError{WorkerID: workerID, Engine: opts.EngineType, Op: "start", Err: err}
	}

	if opts.BaseURL != "" {
		if err := driver.Navigate(startCtx, opts.BaseURL); err != nil {
			driver.Quit()
			return nil, &SessionError{WorkerID: workerID, Engine: opts.EngineType, Op: "navigate", Err: err}
		}
	}

	sess := &Session{
		WorkerID:  workerID,
		Options:   opts,
		StartedAt: m.now(),
		driver:    driver,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.slots[workerID]; busy {
		driver.Quit()
		return nil, fmt.Errorf("worker %d: %w", workerID, ErrSessionActive)
	}
	m.slots[workerID] = sess
	m.states[workerID] = StateActive
	return sess, nil
}

// Release tears down the session of workerID and clears its slot. It is a
// no-op when the worker holds no session. The slot is cleared even when the
// engine fails to quit, so a stale handle never reaches the next test.
func (m *Manager) Release(workerID int) error {
	m.mu.Lock()
	sess, ok := m.slots[workerID]
	delete(m.slots, workerID)
	if ok {
		m.states[workerID] = StateClosed
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sess.driver.Quit(); err != nil {
		return &SessionError{WorkerID: workerID, Engine: sess.Options.EngineType, Op: "quit", Err: err}
	}
	return nil
}

// Get returns the active session of workerID.
func (m *Manager) Get(workerID int) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.slots[workerID]
	return sess, ok
}

// State returns the lifecycle state of the worker's slot.
func (m *Manager) State(workerID int) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[workerID]
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// CloseAll releases every remaining session and joins their errors.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	ids := make([]int, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Release(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
