package logger

import (
	"bytes"
	"strings"
	"testing"
)

// TestLogLevelFiltering verifies that messages are filtered based on log level
func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name         string
		logLevel     string
		messageLevel string
		shouldAppear bool
	}{
		{name: "trace sees trace", logLevel: "trace", messageLevel: "trace", shouldAppear: true},
		{name: "debug blocks trace", logLevel: "debug", messageLevel: "trace", shouldAppear: false},
		{name: "debug sees debug", logLevel: "debug", messageLevel: "debug", shouldAppear: true},
		{name: "info blocks debug", logLevel: "info", messageLevel: "debug", shouldAppear: false},
		{name: "info sees info", logLevel: "info", messageLevel: "info", shouldAppear: true},
		{name: "info sees error", logLevel: "info", messageLevel: "error", shouldAppear: true},
		{name: "warn blocks info", logLevel: "warn", messageLevel: "info", shouldAppear: false},
		{name: "warn sees warn", logLevel: "warn", messageLevel: "warn", shouldAppear: true},
		{name: "error blocks warn", logLevel: "error", messageLevel: "warn", shouldAppear: false},
		{name: "error sees error", logLevel: "error", messageLevel: "error", shouldAppear: true},
		{name: "invalid level defaults to info", logLevel: "chatty", messageLevel: "debug", shouldAppear: false},
		{name: "level is case insensitive", logLevel: " DEBUG ", messageLevel: "debug", shouldAppear: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewConsoleLogger(buf, tt.logLevel)

			switch tt.messageLevel {
			case "trace":
				logger.LogTrace("msg")
			case "debug":
				logger.LogDebug("msg")
			case "info":
				logger.LogInfo("msg")
			case "warn":
				logger.LogWarn("msg")
			case "error":
				logger.LogError("msg")
			}

			appeared := strings.Contains(buf.String(), "msg")
			if appeared != tt.shouldAppear {
				t.Errorf("level %s, message %s: appeared = %v, want %v", tt.logLevel, tt.messageLevel, appeared, tt.shouldAppear)
			}
		})
	}
}

func TestNormalizeLogLevel(t *testing.T) {
	tests := map[string]string{
		"":      "info",
		"WARN":  "warn",
		"trace": "trace",
		"bogus": "info",
	}
	for in, want := range tests {
		if got := normalizeLogLevel(in); got != want {
			t.Errorf("normalizeLogLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
