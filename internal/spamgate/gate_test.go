package spamgate

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/form"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForForm_GateOrder(t *testing.T) {
	f := NewFactory(config.CaptchaConfig{Enabled: true, Provider: "hcaptcha", SecretKey: "0xsecret"}, nil, testLogger())

	cfg := config.FormConfig{
		HoneypotEnabled: true,
		HoneypotField:   "_honeypot",
	}

	gates := f.ForForm(cfg)
	if len(gates) != 2 {
		t.Fatalf("ForForm() returned %d gates, want 2", len(gates))
	}
	if gates[0].Name() != "honeypot" {
		t.Errorf("gates[0] = %q, want honeypot first", gates[0].Name())
	}
	if gates[1].Name() != "challenge" {
		t.Errorf("gates[1] = %q, want challenge", gates[1].Name())
	}
}

func TestForForm_NoGatesWhenDisabled(t *testing.T) {
	f := NewFactory(config.CaptchaConfig{}, nil, testLogger())

	gates := f.ForForm(config.FormConfig{HoneypotField: "_honeypot"})
	if len(gates) != 0 {
		t.Errorf("ForForm() returned %d gates, want 0", len(gates))
	}
}

func TestForForm_PerFormCaptchaOverridesGlobalOff(t *testing.T) {
	f := NewFactory(config.CaptchaConfig{}, nil, testLogger())

	cfg := config.FormConfig{
		Captcha: config.FormCaptchaConfig{Enabled: true, SecretKey: "0xform"},
	}

	gates := f.ForForm(cfg)
	if len(gates) != 1 || gates[0].Name() != "challenge" {
		t.Fatalf("ForForm() = %v, want single challenge gate", gates)
	}
}

func TestHoneypot(t *testing.T) {
	gate := &honeypotGate{field: "_honeypot"}

	tests := []struct {
		name       string
		fields     []form.Field
		wantReject bool
	}{
		{"absent", []form.Field{{Name: "email", Value: "a@example.com"}}, false},
		{"present empty", []form.Field{{Name: "_honeypot", Value: ""}}, false},
		{"filled", []form.Field{{Name: "_honeypot", Value: "http://spam.example"}}, true},
		{"whitespace counts as filled", []form.Field{{Name: "_honeypot", Value: " "}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Evaluate(context.Background(), &form.Submission{Fields: tt.fields})
			if (err != nil) != tt.wantReject {
				t.Errorf("Evaluate() error = %v, wantReject %v", err, tt.wantReject)
			}
			if tt.wantReject {
				assertSpamError(t, err, "honeypot")
			}
		})
	}
}

func assertSpamError(t *testing.T, err error, reason string) {
	t.Helper()
	fe, ok := err.(*form.Error)
	if !ok {
		t.Fatalf("error type = %T, want *form.Error", err)
	}
	if fe.Type != form.ErrorTypeSpamRejected {
		t.Errorf("error type = %v, want %v", fe.Type, form.ErrorTypeSpamRejected)
	}
	if fe.Reason != reason {
		t.Errorf("reason = %q, want %q", fe.Reason, reason)
	}
}
