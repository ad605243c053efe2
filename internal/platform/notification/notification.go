// Package notification delivers alert emails rendered from templates.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"
)

// EmailSender sends a single HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// -- SMTP --

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// NoopSender drops every message. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendEmail(context.Context, string, string, string) error { return nil }

// -- Templates --

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

const (
	TemplateCriticalAlert = "critical-alert"
	TemplateRecall        = "medicine-recall"
)

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.Register(Template{
		ID:      TemplateCriticalAlert,
		Subject: "[Dhanvantari] {{title}}",
		Body:    "<p>Hello {{name}},</p><p>{{message}}</p><p>Open Dhanvantari to review this alert.</p>",
	})
	e.Register(Template{
		ID:      TemplateRecall,
		Subject: "[Dhanvantari] Recall: {{medicine}} batch {{batch}}",
		Body: "<p>Hello {{name}},</p><p>{{medicine}} (batch {{batch}}) from {{manufacturer}} has been recalled. " +
			"Stop using it and consult your pharmacist.</p>",
	})
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render fills the template. Placeholders without data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Mailer combines a sender with the template engine.
type Mailer struct {
	sender    EmailSender
	templates *TemplateEngine
}

func NewMailer(sender EmailSender, templates *TemplateEngine) *Mailer {
	return &Mailer{sender: sender, templates: templates}
}

func (m *Mailer) SendTemplate(ctx context.Context, to, templateID string, data map[string]string) error {
	if to == "" {
		return errors.New("recipient is required")
	}
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, to, subject, body)
}

// -- Test double --

type EmailCall struct {
	To      string
	Subject string
	Body    string
}

type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
