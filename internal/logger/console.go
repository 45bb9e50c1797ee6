// Package logger provides logging implementations for suiterun.
//
// The logger package reports run progress at the test and summary levels.
// Implementations are thread-safe and support various output destinations
// (console, file, or both through MultiLogger).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/models"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	progress    *RunProgress
	showBar     bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// logLevel determines the minimum log level for messages to be output.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// WithProgress enables a progress line after every finished test.
func (cl *ConsoleLogger) WithProgress() *ConsoleLogger {
	cl.showBar = true
	return cl
}

// isTerminal checks if the writer is a terminal that supports colors.
// NO_COLOR disables colors through fatih/color.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if f != os.Stdout && f != os.Stderr {
		return false
	}
	fd := f.Fd()
	return (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && !color.NoColor
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}

	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// timestamp returns the current time formatted as HH:MM:SS.
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		cl.write(cl.formatWithColor(ts, level, message))
		return
	}
	cl.write(fmt.Sprintf("[%s] [%s] %s\n", ts, level, message))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch level {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// write must be called with the mutex held.
func (cl *ConsoleLogger) write(s string) {
	cl.writer.Write([]byte(s))
}

// LogRunStart logs the start of a run at INFO level.
// Format: "[HH:MM:SS] Starting <suite>: <n> tests on <threads> workers (run <id>)"
func (cl *ConsoleLogger) LogRunStart(suite, runID string, total, threads int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.showBar {
		cl.progress = NewRunProgress(total, 20, cl.colorOutput)
	}

	name := suite
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(suite)
	}
	cl.write(fmt.Sprintf("[%s] Starting %s: %d tests on %d workers (run %s)\n", timestamp(), name, total, threads, runID))
}

// LogTestStart logs a worker picking up a test at DEBUG level.
func (cl *ConsoleLogger) LogTestStart(workerID int, testID string) {
	cl.logWithLevel("DEBUG", fmt.Sprintf("worker %d: starting %s", workerID, testID))
}

// LogTestResult logs a finished test at INFO level using its result line.
// Failures are also visible at WARN level so quiet runs still show them.
func (cl *ConsoleLogger) LogTestResult(outcome models.TestOutcome) {
	if cl.writer == nil {
		return
	}
	level := "info"
	if outcome.Status == models.StatusFailed {
		level = "warn"
	}
	if !cl.shouldLog(level) {
		cl.advance(outcome.Status)
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	line := models.ResultLine(outcome)
	if cl.colorOutput {
		marker := outcome.Status.Marker()
		line = strings.Replace(line, marker, statusColor(outcome.Status).Sprint(marker), 1)
	}
	if outcome.Attempts > 1 {
		line += fmt.Sprintf(" [attempts: %d]", outcome.Attempts)
	}
	cl.write(fmt.Sprintf("[%s] %s\n", timestamp(), line))

	if cl.progress != nil {
		cl.progress.Record(outcome.Status)
		cl.write(fmt.Sprintf("[%s] %s\n", timestamp(), cl.progress.Render()))
	}
}

func (cl *ConsoleLogger) advance(status models.Status) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	if cl.progress != nil {
		cl.progress.Record(status)
	}
}

// LogSweep logs a retention sweep. The sweep message carries its own marker.
// Deleted file names are listed at DEBUG level with their human timestamps.
func (cl *ConsoleLogger) LogSweep(result artifact.SweepResult) {
	if result.Message != "" {
		level := "INFO"
		if result.Failed > 0 || strings.HasPrefix(result.Message, "[ERROR]") {
			level = "WARN"
		}
		cl.logWithLevel(level, fmt.Sprintf("%s cleanup in %s: %s", result.Kind, result.Dir, result.Message))
	}
	for _, name := range result.DeletedNames {
		cl.logWithLevel("DEBUG", fmt.Sprintf("[DELETED] %s (%s)", name, artifact.HumanTimestamp(name)))
	}
	for _, name := range result.FailedNames {
		cl.logWithLevel("WARN", fmt.Sprintf("[ERROR] Failed to delete %s", name))
	}
}

// LogSummary prints the end-of-run table followed by the summary block.
func (cl *ConsoleLogger) LogSummary(summary models.RunSummary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.write(renderSummaryTable(summary, cl.colorOutput))
	cl.write("\n")
	cl.write(summaryBlock(summary, cl.colorOutput))
}
