package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/form"
)

func limitsConfig() config.FormConfig {
	return config.FormConfig{
		ID:                "contact",
		MaxFieldLength:    100,
		MaxFields:         3,
		MaxFileSize:       1024,
		MaxFiles:          2,
		AllowedExtensions: []string{"pdf", ".PNG"},
	}
}

func TestCheckLimits_Fields(t *testing.T) {
	cfg := limitsConfig()

	t.Run("within limits", func(t *testing.T) {
		sub := &form.Submission{Fields: []form.Field{{Name: "a", Value: "one"}, {Name: "b", Value: "two"}}}
		if err := checkLimits(cfg, sub); err != nil {
			t.Fatalf("checkLimits() error = %v", err)
		}
	})

	t.Run("too many fields", func(t *testing.T) {
		sub := &form.Submission{Fields: []form.Field{
			{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"},
		}}
		assertValidationError(t, checkLimits(cfg, sub), "fields")
	})

	t.Run("field too long reports first violation in order", func(t *testing.T) {
		long := strings.Repeat("x", 101)
		sub := &form.Submission{Fields: []form.Field{
			{Name: "first", Value: long},
			{Name: "second", Value: long},
		}}
		assertValidationError(t, checkLimits(cfg, sub), "first")
	})
}

func TestCheckLimits_Attachments(t *testing.T) {
	cfg := limitsConfig()

	t.Run("too many attachments", func(t *testing.T) {
		sub := &form.Submission{Attachments: []form.RawAttachment{
			{Filename: "a.pdf"}, {Filename: "b.pdf"}, {Filename: "c.pdf"},
		}}
		assertValidationError(t, checkLimits(cfg, sub), "attachments")
	})

	t.Run("oversized attachment rejects whole submission", func(t *testing.T) {
		sub := &form.Submission{Attachments: []form.RawAttachment{
			{Filename: "ok.pdf", Content: make([]byte, 10)},
			{Filename: "big.pdf", Content: make([]byte, 2048)},
		}}
		assertValidationError(t, checkLimits(cfg, sub), "big.pdf")
	})

	t.Run("extension check is case insensitive", func(t *testing.T) {
		sub := &form.Submission{Attachments: []form.RawAttachment{
			{Filename: "shot.png", Content: []byte("x")},
			{Filename: "doc.PDF", Content: []byte("x")},
		}}
		if err := checkLimits(cfg, sub); err != nil {
			t.Fatalf("checkLimits() error = %v", err)
		}
	})

	t.Run("disallowed extension", func(t *testing.T) {
		sub := &form.Submission{Attachments: []form.RawAttachment{
			{Filename: "run.exe", Content: []byte("x")},
		}}
		assertValidationError(t, checkLimits(cfg, sub), "run.exe")
	})

	t.Run("no extension list allows anything", func(t *testing.T) {
		open := cfg
		open.AllowedExtensions = nil
		sub := &form.Submission{Attachments: []form.RawAttachment{
			{Filename: "run.exe", Content: []byte("x")},
		}}
		if err := checkLimits(open, sub); err != nil {
			t.Fatalf("checkLimits() error = %v", err)
		}
	})
}

func assertValidationError(t *testing.T, err error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	var fe *form.Error
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *form.Error", err)
	}
	if fe.Type != form.ErrorTypeValidationRejected {
		t.Errorf("error type = %v, want %v", fe.Type, form.ErrorTypeValidationRejected)
	}
	if fe.Reason != reason {
		t.Errorf("error reason = %q, want %q", fe.Reason, reason)
	}
}
