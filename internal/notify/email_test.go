package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type captureSender struct {
	msgs []*mail.Msg
	err  error
}

func (c *captureSender) Send(ctx context.Context, msg *mail.Msg) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func readyEmailConfig() EmailConfig {
	return EmailConfig{
		Enabled:       true,
		Host:          "smtp.example.com",
		Port:          587,
		Username:      "bot@example.com",
		Password:      "secret",
		FromName:      "QA Bot",
		Recipients:    []string{"a@example.com", "b@example.com"},
		SubjectPrefix: "[QA]",
	}
}

func TestEmail_Ready(t *testing.T) {
	cfg := readyEmailConfig()
	ok, _ := NewEmail(cfg, nil).Ready()
	assert.True(t, ok)

	cfg.Password = ""
	ok, reason := NewEmail(cfg, nil).Ready()
	assert.False(t, ok)
	assert.Equal(t, "password not set", reason)

	cfg = readyEmailConfig()
	cfg.Recipients = nil
	ok, reason = NewEmail(cfg, nil).Ready()
	assert.False(t, ok)
	assert.Equal(t, "recipients not set", reason)
}

func TestEmail_BuildMessageAttachesReport(t *testing.T) {
	summary := sampleSummary()
	summary.ReportPath = filepath.Join(t.TempDir(), "Enhanced_AutomationReport_2026-03-01_16-05-00.html")
	require.NoError(t, os.WriteFile(summary.ReportPath, []byte("<html></html>"), 0644))

	msg, err := NewEmail(readyEmailConfig(), nil).BuildMessage(summary)
	require.NoError(t, err)

	assert.Equal(t, []string{"[QA] ❌ FAILED - Checkout - 01-03-2026 16:05:09"}, msg.GetGenHeader(mail.HeaderSubject))
	attachments := msg.GetAttachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "TestReport_01-03-2026_16-05-09.html", attachments[0].Name)
}

func TestEmail_MissingReportIsNotAttached(t *testing.T) {
	summary := sampleSummary()
	summary.ReportPath = filepath.Join(t.TempDir(), "gone.html")

	msg, err := NewEmail(readyEmailConfig(), nil).BuildMessage(summary)
	require.NoError(t, err)
	assert.Empty(t, msg.GetAttachments())
}

func TestEmail_SendUsesSender(t *testing.T) {
	sender := &captureSender{}
	require.NoError(t, NewEmail(readyEmailConfig(), sender).Send(context.Background(), sampleSummary()))
	assert.Len(t, sender.msgs, 1)

	sender.err = errors.New("auth failed")
	err := NewEmail(readyEmailConfig(), sender).Send(context.Background(), sampleSummary())
	assert.ErrorContains(t, err, "auth failed")
}

func TestRenderEmailBody(t *testing.T) {
	body, err := renderEmailBody(sampleSummary())
	require.NoError(t, err)
	assert.Contains(t, body, "❌ FAILED")
	assert.Contains(t, body, "#dc3545")
	assert.Contains(t, body, "33.3%")
	assert.Contains(t, body, "[FAIL] t2 (0.300 sec)")
}
