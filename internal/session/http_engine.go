package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// HTTPEngineType is the registry name of the built-in HTTP engine.
const HTTPEngineType = "http"

// maxCaptureBody bounds the body bytes kept in a capture.
const maxCaptureBody = 64 * 1024

// HTTPEngine starts drivers that talk to the system under test over plain
// HTTP. It backs API suites and smoke checks that need no browser.
type HTTPEngine struct {
	transport http.RoundTripper
}

// NewHTTPEngine creates the engine. A nil transport uses http.DefaultTransport.
func NewHTTPEngine(transport http.RoundTripper) *HTTPEngine {
	return &HTTPEngine{transport: transport}
}

// Start creates a driver whose client times out after the page load timeout.
func (e *HTTPEngine) Start(ctx context.Context, opts Options) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var base *url.URL
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		base = u
	}
	return &HTTPDriver{
		client:  &http.Client{Transport: e.transport, Timeout: opts.PageLoadTimeout},
		baseURL: base,
	}, nil
}

// Response is the last exchange performed by an HTTPDriver.
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// HTTPDriver is the Driver of the http engine.
type HTTPDriver struct {
	client  *http.Client
	baseURL *url.URL

	mu   sync.Mutex
	last *Response
	quit bool
}

// Resolve turns a relative reference into an absolute URL.
func (d *HTTPDriver) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	if d.baseURL == nil || u.IsAbs() {
		return u.String(), nil
	}
	return d.baseURL.ResolveReference(u).String(), nil
}

// Navigate performs a GET request.
func (d *HTTPDriver) Navigate(ctx context.Context, ref string) error {
	_, err := d.Do(ctx, http.MethodGet, ref, nil, nil)
	return err
}

// Do performs a request and records it as the last response. Non-2xx
// statuses are not errors; assertions belong to the test body.
func (d *HTTPDriver) Do(ctx context.Context, method, ref string, body []byte, header http.Header) (*Response, error) {
	d.mu.Lock()
	closed := d.quit
	d.mu.Unlock()
	if closed {
		return nil, errors.New("http driver already quit")
	}

	target, err := d.Resolve(ref)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	r := &Response{
		Method:     method,
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
		Latency:    time.Since(start),
	}
	d.mu.Lock()
	d.last = r
	d.mu.Unlock()
	return r, nil
}

// Last returns the most recent response, or nil.
func (d *HTTPDriver) Last() *Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Capture renders the last exchange as text: request line, status,
// sorted headers and the (truncated) body.
func (d *HTTPDriver) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	last := d.Last()
	if last == nil {
		return nil, errors.New("nothing to capture: no request performed")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s\n", last.Method, last.URL)
	fmt.Fprintf(&buf, "HTTP %d %s (%s)\n", last.StatusCode, http.StatusText(last.StatusCode), last.Latency.Round(time.Millisecond))

	keys := make([]string, 0, len(last.Header))
	for k := range last.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s: %s\n", k, strings.Join(last.Header[k], ", "))
	}
	buf.WriteString("\n")

	body := last.Body
	if len(body) > maxCaptureBody {
		body = body[:maxCaptureBody]
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// Quit releases idle connections. Calling it twice is harmless.
func (d *HTTPDriver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.quit {
		return nil
	}
	d.quit = true
	d.client.CloseIdleConnections()
	return nil
}
