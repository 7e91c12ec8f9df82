package monitor

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/telemetry"
)

// LogAlerter writes alerts to the log
type LogAlerter struct{}

// Alert logs a at warn level
func (LogAlerter) Alert(_ context.Context, a Alert) error {
	logger.Warn(a.Subject(), logger.Fields{
		"source":   a.Source,
		"failures": a.Failures,
	})
	return nil
}

type sendFunc func(addr string, auth smtp.Auth, mail *email.Email) error

func sendMail(addr string, auth smtp.Auth, mail *email.Email) error {
	return mail.Send(addr, auth)
}

// EmailAlerter mails alerts through an SMTP server
type EmailAlerter struct {
	cfg  config.EmailConfig
	send sendFunc
}

// NewEmailAlerter creates an alerter for cfg
func NewEmailAlerter(cfg config.EmailConfig) *EmailAlerter {
	return &EmailAlerter{cfg: cfg, send: sendMail}
}

// Alert mails a. Servers that refuse AUTH are retried without it.
func (e *EmailAlerter) Alert(ctx context.Context, a Alert) error {
	_, span := telemetry.Tracer().Start(ctx, "monitor.alert.email")
	defer span.End()

	mail := e.compose(a)
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	err := e.send(addr, auth, mail)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(addr, nil, mail)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return fmt.Errorf("sending alert email: %w", err)
	}
	return nil
}

func (e *EmailAlerter) compose(a Alert) *email.Email {
	mail := email.NewEmail()
	mail.From = e.cfg.From
	mail.To = e.cfg.To
	mail.Subject = "⚠️ " + a.Subject()

	var text, body bytes.Buffer
	fmt.Fprintf(&text, "The source %s has failed to return events %d consecutive times.\n\nRecent runs:\n", a.Source, a.Failures)
	fmt.Fprintf(&body, "<h2>Source alert: %s</h2>\n", html.EscapeString(a.Source))
	fmt.Fprintf(&body, "<p>The source <strong>%s</strong> has failed to return events %d consecutive times.</p>\n<h3>Recent runs</h3>\n<ul>\n",
		html.EscapeString(a.Source), a.Failures)
	for _, run := range a.Runs {
		line := fmt.Sprintf("%s - %s (%dms)", run.At.Format("2006-01-02 15:04:05 MST"), describe(run), run.Duration.Milliseconds())
		fmt.Fprintf(&text, "- %s\n", line)
		fmt.Fprintf(&body, "<li>%s</li>\n", html.EscapeString(line))
	}
	body.WriteString("</ul>\n<p>Check the source selectors and the target site for changes.</p>\n")
	text.WriteString("\nCheck the source selectors and the target site for changes.\n")

	mail.Text = text.Bytes()
	mail.HTML = body.Bytes()
	return mail
}

func describe(r Run) string {
	switch r.Status() {
	case "ERROR":
		return "ERROR: " + r.Error
	case "NO EVENTS":
		return "NO EVENTS FOUND"
	}
	return fmt.Sprintf("%d events found", r.Count)
}

// FromConfig returns an EmailAlerter when mail is configured, else a LogAlerter
func FromConfig(cfg config.MonitorConfig) Alerter {
	if cfg.Email.Enabled() {
		return NewEmailAlerter(cfg.Email)
	}
	return LogAlerter{}
}
