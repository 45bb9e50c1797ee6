package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harrison/suiterun/internal/filelock"
)

// DefaultMaxKeep is used when no retention limit is configured.
const DefaultMaxKeep = 3

// removeFile is swapped in tests to simulate locked files.
var removeFile = os.Remove

// RetentionPolicy selects the files in Dir that begin with Prefix and end
// with one of Suffixes, and keeps only the MaxKeep most recently modified.
type RetentionPolicy struct {
	Kind     string
	Dir      string
	Prefix   string
	Suffixes []string
	MaxKeep  int
}

// ReportPolicy matches Enhanced_AutomationReport_*.html files.
func ReportPolicy(dir string, maxKeep int) RetentionPolicy {
	return RetentionPolicy{
		Kind:     string(KindReport),
		Dir:      dir,
		Prefix:   ReportPrefix + "_",
		Suffixes: []string{"." + ReportExtension},
		MaxKeep:  maxKeep,
	}
}

// ScreenshotPolicy matches captured screenshots of any test.
func ScreenshotPolicy(dir string, maxKeep int) RetentionPolicy {
	return RetentionPolicy{
		Kind:     string(KindScreenshot),
		Dir:      dir,
		Suffixes: []string{".png", ".txt"},
		MaxKeep:  maxKeep,
	}
}

// LogPolicy matches run-*.log files written by the file logger.
func LogPolicy(dir string, maxKeep int) RetentionPolicy {
	return RetentionPolicy{
		Kind:     "log",
		Dir:      dir,
		Prefix:   "run-",
		Suffixes: []string{".log"},
		MaxKeep:  maxKeep,
	}
}

// Matches reports whether a file name is governed by the policy.
// Hidden files (lock files, temp files) never match.
func (p RetentionPolicy) Matches(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if !strings.HasPrefix(name, p.Prefix) {
		return false
	}
	if len(p.Suffixes) == 0 {
		return true
	}
	for _, suffix := range p.Suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// SweepResult describes one retention sweep.
type SweepResult struct {
	Kind         string
	Dir          string
	Found        int
	Kept         int
	Deleted      int
	Failed       int
	KeptNames    []string
	DeletedNames []string
	FailedNames  []string
	Created      bool // Directory did not exist and was created
	Message      string
}

type candidate struct {
	name    string
	modTime time.Time
}

// Sweep enforces the policy. Files are sorted by modification time, newest
// first; the first MaxKeep are kept and the rest deleted. A failed deletion
// is recorded and the sweep continues. The directory lock is held for the
// whole sweep so it never interleaves with artifact writes.
func Sweep(policy RetentionPolicy) (SweepResult, error) {
	result := SweepResult{Kind: policy.Kind, Dir: policy.Dir}

	if policy.MaxKeep < 0 {
		return result, fmt.Errorf("retention max keep must be >= 0, got %d", policy.MaxKeep)
	}

	if _, err := os.Stat(policy.Dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(policy.Dir, 0755); err != nil {
			result.Message = fmt.Sprintf("[ERROR] Could not create directory %s: %v", policy.Dir, err)
			return result, fmt.Errorf("create directory %s: %w", policy.Dir, err)
		}
		result.Created = true
		result.Message = fmt.Sprintf("[INFO] Directory created: %s", policy.Dir)
		return result, nil
	}

	err := filelock.WithDirLock(policy.Dir, func() error {
		return sweepLocked(policy, &result)
	})
	if err != nil {
		if result.Message == "" {
			result.Message = fmt.Sprintf("[ERROR] Error during cleanup: %v", err)
		}
		return result, err
	}
	return result, nil
}

func sweepLocked(policy RetentionPolicy, result *SweepResult) error {
	entries, err := os.ReadDir(policy.Dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", policy.Dir, err)
	}

	var files []candidate
	for _, entry := range entries {
		if entry.IsDir() || !policy.Matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Vanished between listing and stat.
			continue
		}
		files = append(files, candidate{name: entry.Name(), modTime: info.ModTime()})
	}
	result.Found = len(files)

	if len(files) == 0 {
		result.Message = fmt.Sprintf("[INFO] No files found in directory: %s", policy.Dir)
		return nil
	}

	if len(files) <= policy.MaxKeep {
		result.Kept = len(files)
		for _, f := range files {
			result.KeptNames = append(result.KeptNames, f.name)
		}
		result.Message = fmt.Sprintf("[INFO] Only %d file(s) found, no cleanup needed (keeping latest %d)", len(files), policy.MaxKeep)
		return nil
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	for _, f := range files[:policy.MaxKeep] {
		result.KeptNames = append(result.KeptNames, f.name)
	}
	result.Kept = policy.MaxKeep

	for _, f := range files[policy.MaxKeep:] {
		if err := removeFile(filepath.Join(policy.Dir, f.name)); err != nil {
			result.Failed++
			result.FailedNames = append(result.FailedNames, f.name)
			continue
		}
		result.Deleted++
		result.DeletedNames = append(result.DeletedNames, f.name)
	}

	if result.Failed == 0 {
		result.Message = fmt.Sprintf("[SUCCESS] Cleanup completed successfully! Kept %d latest, deleted %d old", result.Kept, result.Deleted)
	} else {
		result.Message = fmt.Sprintf("[WARNING] Cleanup completed with %d failed deletions. Kept %d, deleted %d", result.Failed, result.Kept, result.Deleted)
	}
	return nil
}
