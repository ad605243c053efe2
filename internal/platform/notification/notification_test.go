package notification

import (
	"context"
	"strings"
	"testing"
)

func TestTemplateEngine_RenderRecall(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateRecall, map[string]string{
		"name":         "Asha",
		"medicine":     "Paracetamol",
		"batch":        "B100",
		"manufacturer": "Acme",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "[Dhanvantari] Recall: Paracetamol batch B100" {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "from Acme has been recalled") {
		t.Errorf("unexpected body %q", body)
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestTemplateEngine_MissingKeysLeftAsIs(t *testing.T) {
	subject, _, _ := NewTemplateEngine().Render(TemplateCriticalAlert, nil)
	if subject != "[Dhanvantari] {{title}}" {
		t.Errorf("expected placeholder preserved, got %q", subject)
	}
}

func TestMailer_SendTemplate(t *testing.T) {
	mock := &MockEmailSender{}
	m := NewMailer(mock, NewTemplateEngine())

	err := m.SendTemplate(context.Background(), "asha@example.com", TemplateCriticalAlert, map[string]string{
		"title": "Counterfeit reported", "message": "A report was filed", "name": "Asha",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	calls := mock.Calls()
	if len(calls) != 1 || calls[0].To != "asha@example.com" {
		t.Fatalf("expected one call to asha, got %+v", calls)
	}
	if calls[0].Subject != "[Dhanvantari] Counterfeit reported" {
		t.Errorf("unexpected subject %q", calls[0].Subject)
	}
}

func TestMailer_RequiresRecipient(t *testing.T) {
	m := NewMailer(&MockEmailSender{}, NewTemplateEngine())
	if err := m.SendTemplate(context.Background(), "", TemplateCriticalAlert, nil); err == nil {
		t.Error("expected error for empty recipient")
	}
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "noreply@dhanvantari.app"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendEmail(ctx, "a@example.com", "s", "b"); err == nil {
		t.Error("expected context error")
	}
}
