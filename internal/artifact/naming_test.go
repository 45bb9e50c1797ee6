package artifact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNameRoundTrip(t *testing.T) {
	at := time.Date(2025, 9, 15, 23, 4, 49, 0, time.Local)

	name := FileName(ReportPrefix, at, "html")
	assert.Equal(t, "Enhanced_AutomationReport_2025-09-15_23-04-49.html", name)

	got, err := ParseTimestamp(name)
	require.NoError(t, err)
	assert.True(t, got.Equal(at), "ParseTimestamp() = %v, want %v", got, at)
}

func TestParseTimestamp_ScreenshotNames(t *testing.T) {
	got, err := ParseTimestamp("shots/t2_2024-01-01_00-00-00.png")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local), got)

	got, err = ParseTimestamp("login_flow_FAILED-2_2024-02-03_04-05-06.txt")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Second())
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, name := range []string{"report.html", "x_2024-13-01_00-00-00.png", "x-2024-01-01_00-00-00.png"} {
		_, err := ParseTimestamp(name)
		assert.Error(t, err, name)
	}
}

func TestHumanTimestamp(t *testing.T) {
	assert.Equal(t, "Sep 15, 2025 11:04:49 PM", HumanTimestamp("Enhanced_AutomationReport_2025-09-15_23-04-49.html"))
	assert.Equal(t, "notes.html", HumanTimestamp("notes.html"))
}

func TestSniffExtension(t *testing.T) {
	assert.Equal(t, "png", SniffExtension([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}))
	assert.Equal(t, "txt", SniffExtension([]byte("HTTP/1.1 500")))
	assert.Equal(t, "txt", SniffExtension(nil))
}

func TestSanitizeBase(t *testing.T) {
	assert.Equal(t, "Search_Nike_shoes", sanitizeBase("Search Nike/shoes"))
	assert.Equal(t, "artifact", sanitizeBase(""))
}
