// Package session owns the execution sessions test cases run against.
//
// A session is one isolated automation context (a browser, an HTTP client)
// bound to a single worker for the duration of one test case. Sessions are
// kept in an explicit worker-id keyed table rather than goroutine-local
// state, so ownership is visible and testable.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnsupportedEngine is returned when no engine is registered for a type.
var ErrUnsupportedEngine = errors.New("unsupported engine")

// Options configures a new session.
type Options struct {
	EngineType      string
	Headless        bool
	CI              bool // CI environments always run headless
	BaseURL         string
	ImplicitWait    time.Duration
	ExplicitWait    time.Duration
	PageLoadTimeout time.Duration
}

// EffectiveHeadless reports whether the engine must start without a display.
func (o Options) EffectiveHeadless() bool {
	return o.Headless || o.CI
}

// Driver is the handle of a running engine instance.
type Driver interface {
	// Navigate loads url; relative urls resolve against the session base URL.
	Navigate(ctx context.Context, url string) error
	// Capture returns the current screen (or equivalent) as bytes.
	Capture(ctx context.Context) ([]byte, error)
	// Quit tears the instance down. It must be safe to call once per driver.
	Quit() error
}

// Engine starts drivers of one engine type.
type Engine interface {
	Start(ctx context.Context, opts Options) (Driver, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, opts Options) (Driver, error)

// Start calls f.
func (f EngineFunc) Start(ctx context.Context, opts Options) (Driver, error) {
	return f(ctx, opts)
}

// Registry maps engine type names (case-insensitive) to engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Engine)}
}

// DefaultRegistry returns a registry with the built-in http engine.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(HTTPEngineType, NewHTTPEngine(nil))
	return r
}

// Register adds or replaces the engine for name.
func (r *Registry) Register(name string, engine Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[strings.ToLower(strings.TrimSpace(name))] = engine
}

// Lookup returns the engine for name or ErrUnsupportedEngine.
func (r *Registry) Lookup(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnsupportedEngine, name, strings.Join(r.namesLocked(), ", "))
	}
	return engine, nil
}

// Names returns the registered engine types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
