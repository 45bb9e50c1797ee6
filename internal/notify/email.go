package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"

	"github.com/wneessen/go-mail"

	"github.com/harrison/suiterun/internal/models"
)

// EmailConfig holds resolved SMTP settings. Empty credentials mean unset.
type EmailConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Username      string
	Password      string
	FromName      string
	Recipients    []string
	SubjectPrefix string
}

// MailSender delivers a built message.
type MailSender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// smtpSender dials the configured server with STARTTLS and plain auth.
type smtpSender struct {
	config EmailConfig
}

func (s smtpSender) Send(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.config.Host,
		mail.WithPort(s.config.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.config.Username),
		mail.WithPassword(s.config.Password),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// Email sends an HTML summary with the report attached.
type Email struct {
	config EmailConfig
	sender MailSender
}

// NewEmail creates the channel. A nil sender talks SMTP directly.
func NewEmail(cfg EmailConfig, sender MailSender) *Email {
	if sender == nil {
		sender = smtpSender{config: cfg}
	}
	return &Email{config: cfg, sender: sender}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Ready() (bool, string) {
	switch {
	case !e.config.Enabled:
		return false, "disabled in configuration"
	case e.config.Host == "":
		return false, "smtp host not set"
	case e.config.Username == "":
		return false, "username not set"
	case e.config.Password == "":
		return false, "password not set"
	case len(e.config.Recipients) == 0:
		return false, "recipients not set"
	}
	return true, ""
}

// Send builds and delivers the message.
func (e *Email) Send(ctx context.Context, summary models.RunSummary) error {
	msg, err := e.BuildMessage(summary)
	if err != nil {
		return err
	}
	if err := e.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// BuildMessage assembles subject, HTML body and the report attachment.
// A missing report file is left out rather than failing the send.
func (e *Email) BuildMessage(summary models.RunSummary) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(e.config.FromName, e.config.Username); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(e.config.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(Subject(e.config.SubjectPrefix, summary))

	body, err := renderEmailBody(summary)
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(mail.TypeTextHTML, body)

	if summary.ReportPath != "" {
		if _, err := os.Stat(summary.ReportPath); err == nil {
			msg.AttachFile(summary.ReportPath, mail.WithFileName(AttachmentName(completedAt(summary))))
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat report: %w", err)
		}
	}
	return msg, nil
}

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; background-color: #f8f9fa; padding: 20px;">
<div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px;">
<div style="background: #5a67d8; color: white; padding: 24px; text-align: center; border-radius: 8px 8px 0 0;">
<h1>Automation Test Report</h1>
<p>{{.Suite}}</p>
</div>
<div style="padding: 24px;">
<div style="background-color: {{.Color}}; color: white; padding: 15px; border-radius: 6px; text-align: center; font-weight: bold;">{{.Status}}</div>
<table style="margin: 20px 0;">
<tr><td><b>Total</b></td><td>{{.S.Total}}</td></tr>
<tr><td><b>Passed</b></td><td>{{.S.Passed}}</td></tr>
<tr><td><b>Failed</b></td><td>{{.S.Failed}}</td></tr>
<tr><td><b>Skipped</b></td><td>{{.S.Skipped}}</td></tr>
<tr><td><b>Success Rate</b></td><td>{{.Rate}}</td></tr>
<tr><td><b>Duration</b></td><td>{{.Duration}}</td></tr>
<tr><td><b>Completed</b></td><td>{{.Completed}}</td></tr>
</table>
<pre style="background-color: #f8f9fa; padding: 12px; border-radius: 6px;">{{range .S.Results}}{{.}}
{{end}}</pre>
{{if .S.ReportPath}}<p><b>Report:</b> the detailed HTML report is attached.</p>{{end}}
</div>
<div style="background-color: #495057; color: white; padding: 16px; text-align: center; border-radius: 0 0 8px 8px;">Automated by suiterun</div>
</div>
</body>
</html>
`))

func renderEmailBody(s models.RunSummary) (string, error) {
	color := "#28a745"
	if !s.AllPassed() {
		color = "#dc3545"
	}
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, map[string]interface{}{
		"S":         s,
		"Suite":     suiteName(s),
		"Status":    StatusLabel(s),
		"Color":     template.CSS(color),
		"Rate":      s.SuccessRateString(),
		"Duration":  models.FormatDuration(s.Duration),
		"Completed": completedAt(s).Format(StampLayout),
	})
	if err != nil {
		return "", fmt.Errorf("render email body: %w", err)
	}
	return buf.String(), nil
}
