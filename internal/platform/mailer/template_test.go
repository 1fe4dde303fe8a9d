package mailer

import (
	"strings"
	"testing"
)

func TestTemplateEngine_RenderAlertCaregiver(t *testing.T) {
	e := NewTemplateEngine()

	subject, body, err := e.Render("alert-caregiver", map[string]string{
		"severity":     "critica",
		"patient_name": "Maria Gonzalez",
		"summary":      "PAS_FUERA_RANGO",
		"date":         "2026-08-28 10:30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Alerta critica: Maria Gonzalez" {
		t.Errorf("unexpected subject: %q", subject)
	}
	if !strings.Contains(body, "PAS_FUERA_RANGO") {
		t.Errorf("expected summary in body, got %q", body)
	}
	if !strings.Contains(body, "2026-08-28 10:30") {
		t.Errorf("expected date in body, got %q", body)
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	_, _, err := e.Render("does-not-exist", nil)
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestTemplateEngine_MissingKeysLeftAsIs(t *testing.T) {
	e := NewTemplateEngine()
	subject, _, err := e.Render("alert-caregiver", map[string]string{
		"severity": "leve",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(subject, "{{patient_name}}") {
		t.Errorf("expected unreplaced placeholder in subject, got %q", subject)
	}
}

func TestTemplateEngine_RegisterOverrides(t *testing.T) {
	e := NewTemplateEngine()
	e.RegisterTemplate(Template{
		ID:      "alert-caregiver",
		Subject: "custom {{x}}",
		Body:    "custom body",
	})

	subject, body, err := e.Render("alert-caregiver", map[string]string{"x": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "custom 1" || body != "custom body" {
		t.Errorf("expected overridden template, got %q / %q", subject, body)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@cesfam.cl", "cuidador@example.com", "Alerta", "cuerpo"))

	for _, want := range []string{
		"From: noreply@cesfam.cl\r\n",
		"To: cuidador@example.com\r\n",
		"Subject: Alerta\r\n",
		"charset=\"utf-8\"",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q", want)
		}
	}
	if !strings.HasSuffix(msg, "\r\n\r\ncuerpo") {
		t.Errorf("expected blank line before body, got %q", msg)
	}
}
