// Package artifact creates timestamped report and screenshot files and
// enforces retention policies over the directories that hold them.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/harrison/suiterun/internal/filelock"
)

// Kind selects the directory an artifact is written to.
type Kind string

const (
	KindReport     Kind = "report"
	KindScreenshot Kind = "screenshot"
)

// IOError reports a failed artifact write. It never fails the test the
// artifact belongs to; callers log it and carry on.
type IOError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s artifact %s: %v", e.Kind, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err is or wraps an IOError.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}

// Store writes artifacts below per-kind directories.
type Store struct {
	reportDir     string
	screenshotDir string
	now           func() time.Time
}

// NewStore creates a Store. Directories are created lazily on first write.
func NewStore(reportDir, screenshotDir string) *Store {
	return &Store{
		reportDir:     reportDir,
		screenshotDir: screenshotDir,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for file name timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Dir returns the directory configured for kind.
func (s *Store) Dir(kind Kind) (string, error) {
	switch kind {
	case KindReport:
		return s.reportDir, nil
	case KindScreenshot:
		return s.screenshotDir, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", kind)
	}
}

// ReportPath returns {reportDir}/Enhanced_AutomationReport_{ts}.html.
func (s *Store) ReportPath(at time.Time) string {
	return filepath.Join(s.reportDir, FileName(ReportPrefix, at, ReportExtension))
}

// Save writes data as {dir(kind)}/{baseName}_{ts}.{ext} and returns the path.
// Reports use the html extension; screenshots are sniffed (png or txt).
// A name already taken within the same second gets a -N suffix on the base.
func (s *Store) Save(kind Kind, baseName string, data []byte) (string, error) {
	dir, err := s.Dir(kind)
	if err != nil {
		return "", err
	}

	ext := ReportExtension
	if kind == KindScreenshot {
		ext = SniffExtension(data)
	}
	base := sanitizeBase(baseName)
	at := s.now()

	var path string
	err = filelock.WithDirLock(dir, func() error {
		path = filepath.Join(dir, FileName(base, at, ext))
		for n := 2; fileExists(path); n++ {
			path = filepath.Join(dir, FileName(base+"-"+strconv.Itoa(n), at, ext))
		}
		return filelock.AtomicWrite(path, data)
	})
	if err != nil {
		if path == "" {
			path = filepath.Join(dir, FileName(base, at, ext))
		}
		return "", &IOError{Kind: kind, Path: path, Err: err}
	}
	return path, nil
}

// SaveScreenshot stores captured bytes for a test.
func (s *Store) SaveScreenshot(testName string, data []byte) (string, error) {
	return s.Save(KindScreenshot, testName, data)
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
