package artifact

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// TimestampLayout is the filename timestamp, yyyy-MM-dd_HH-mm-ss.
	TimestampLayout = "2006-01-02_15-04-05"
	// HumanLayout is used when echoing artifact timestamps to the console.
	HumanLayout = "Jan 02, 2006 03:04:05 PM"

	ReportPrefix    = "Enhanced_AutomationReport"
	ReportExtension = "html"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Artifact is a generated file whose creation instant is encoded in its name.
type Artifact struct {
	Path      string
	Kind      Kind
	CreatedAt time.Time
}

// Name returns the base file name.
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// FileName builds PREFIX_yyyy-MM-dd_HH-mm-ss.EXT.
func FileName(prefix string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, at.Format(TimestampLayout), strings.TrimPrefix(ext, "."))
}

// ParseTimestamp extracts the creation instant from an artifact file name.
// The timestamp is the last TimestampLayout-sized run before the extension,
// so prefixes containing underscores are fine.
func ParseTimestamp(name string) (time.Time, error) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if len(stem) < len(TimestampLayout)+1 {
		return time.Time{}, fmt.Errorf("artifact name %q has no timestamp", base)
	}
	sep := len(stem) - len(TimestampLayout) - 1
	if stem[sep] != '_' {
		return time.Time{}, fmt.Errorf("artifact name %q has no timestamp separator", base)
	}
	ts, err := time.ParseInLocation(TimestampLayout, stem[sep+1:], time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp of %q: %w", base, err)
	}
	return ts, nil
}

// HumanTimestamp reformats the timestamp of name for display, e.g.
// "Sep 15, 2025 11:04:49 PM". The raw name is returned when parsing fails.
func HumanTimestamp(name string) string {
	ts, err := ParseTimestamp(name)
	if err != nil {
		return filepath.Base(name)
	}
	return ts.Format(HumanLayout)
}

// SniffExtension picks the file extension for captured bytes.
func SniffExtension(data []byte) string {
	if bytes.HasPrefix(data, pngMagic) {
		return "png"
	}
	return "txt"
}

// sanitizeBase keeps artifact base names filesystem safe.
func sanitizeBase(name string) string {
	if name == "" {
		return "artifact"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
