package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides project root discovery.
const HomeEnv = "SUITERUN_HOME"

// ProjectRoot returns the directory holding the .suiterun folder.
// Priority order:
//  1. SUITERUN_HOME environment variable (if set)
//  2. Nearest ancestor of start containing a .suiterun directory
//  3. start itself (fallback)
func ProjectRoot(start string) (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	current := abs
	for {
		if info, err := os.Stat(filepath.Join(current, DirName)); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return abs, nil
}

// Resolve makes every relative path in the configuration relative to root.
func (c *Config) Resolve(root string) {
	for _, p := range []*string{
		&c.Report.Path,
		&c.Screenshot.Path,
		&c.LogDir,
		&c.History.DBPath,
		&c.Metrics.Textfile,
		&c.EnvFile,
	} {
		if *p == "" || filepath.IsAbs(*p) || *p == ":memory:" {
			continue
		}
		*p = filepath.Join(root, *p)
	}
}
