package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/models"
)

// LatestLink is the symlink pointing at the most recent run log.
const LatestLink = "latest.log"

// FileLogger logs run events to a timestamped file in the log directory
// and maintains a latest.log symlink pointing to the most recent run.
// It is thread-safe and supports log level filtering.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing run-YYYYMMDD-HHMMSS.log into logDir.
// It creates the log directory if it doesn't exist and updates the latest.log symlink.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, LatestLink)
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== suiterun Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// Path returns the run log file path.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

// Dir returns the log directory.
func (fl *FileLogger) Dir() string {
	return fl.logDir
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogRunStart logs the run header at INFO level.
func (fl *FileLogger) LogRunStart(suite, runID string, total, threads int) {
	fl.LogInfo(fmt.Sprintf("Starting %s: %d tests on %d workers (run %s)", suite, total, threads, runID))
}

// LogTestStart logs a worker picking up a test at DEBUG level.
func (fl *FileLogger) LogTestStart(workerID int, testID string) {
	fl.LogDebug(fmt.Sprintf("worker %d: starting %s", workerID, testID))
}

// LogTestResult writes the result line of a finished test, plus its worker,
// attempts and screenshot.
func (fl *FileLogger) LogTestResult(outcome models.TestOutcome) {
	if !fl.shouldLog("info") {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", timestamp(), models.ResultLine(outcome))
	fmt.Fprintf(&sb, "   worker: %d, attempts: %d\n", outcome.WorkerID, outcome.Attempts)
	if outcome.Screenshot != "" {
		fmt.Fprintf(&sb, "   screenshot: %s\n", outcome.Screenshot)
	}
	fl.writeRunLog(sb.String())
}

// LogSweep records a retention sweep, including every deleted file.
func (fl *FileLogger) LogSweep(result artifact.SweepResult) {
	if result.Message != "" {
		fl.LogInfo(fmt.Sprintf("%s cleanup in %s: %s", result.Kind, result.Dir, result.Message))
	}
	for _, name := range result.DeletedNames {
		fl.LogInfo(fmt.Sprintf("[DELETED] %s (%s)", name, artifact.HumanTimestamp(name)))
	}
	for _, name := range result.FailedNames {
		fl.LogWarn(fmt.Sprintf("[ERROR] Failed to delete %s", name))
	}
}

// LogSummary writes the summary table and block at INFO level.
func (fl *FileLogger) LogSummary(summary models.RunSummary) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog("\n" + renderSummaryTable(summary, false) + "\n" + summaryBlock(summary, false))
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
