package spamgate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/form"
)

func captchaSubmission(token string) *form.Submission {
	sub := &form.Submission{
		FormID:   "contact",
		RemoteIP: "203.0.113.7",
	}
	if token != "" {
		sub.Fields = []form.Field{{Name: "h-captcha-response", Value: token}}
	}
	return sub
}

func newVerifyGate(t *testing.T, handler http.HandlerFunc, global config.CaptchaConfig) *captchaGate {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	global.VerifyURL = srv.URL
	if global.Provider == "" {
		global.Provider = "hcaptcha"
	}
	if global.SecretKey == "" {
		global.SecretKey = "0xtest"
	}
	return newCaptchaGate(config.FormConfig{}, global, srv.Client(), testLogger())
}

func TestCaptcha_Success(t *testing.T) {
	var gotSecret, gotResponse, gotRemoteIP string
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotSecret = r.PostFormValue("secret")
		gotResponse = r.PostFormValue("response")
		gotRemoteIP = r.PostFormValue("remoteip")
		w.Write([]byte(`{"success": true}`))
	}, config.CaptchaConfig{})

	if err := gate.Evaluate(context.Background(), captchaSubmission("tok-123")); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if gotSecret != "0xtest" {
		t.Errorf("secret = %q, want 0xtest", gotSecret)
	}
	if gotResponse != "tok-123" {
		t.Errorf("response = %q, want tok-123", gotResponse)
	}
	if gotRemoteIP != "203.0.113.7" {
		t.Errorf("remoteip = %q, want 203.0.113.7", gotRemoteIP)
	}
}

func TestCaptcha_MissingTokenRejectsWithoutCalling(t *testing.T) {
	called := false
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"success": true}`))
	}, config.CaptchaConfig{})

	err := gate.Evaluate(context.Background(), captchaSubmission(""))
	assertSpamError(t, err, "challenge")
	if called {
		t.Error("verification API should not be called without a token")
	}
}

func TestCaptcha_VerificationFailure(t *testing.T) {
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
	}, config.CaptchaConfig{})

	err := gate.Evaluate(context.Background(), captchaSubmission("bad-token"))
	assertSpamError(t, err, "challenge")
}

func TestCaptcha_ScoreBelowThreshold(t *testing.T) {
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "score": 0.2}`))
	}, config.CaptchaConfig{MinScore: 0.5})

	err := gate.Evaluate(context.Background(), captchaSubmission("low-score"))
	assertSpamError(t, err, "challenge")
}

func TestCaptcha_ScoreAboveThreshold(t *testing.T) {
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "score": 0.9}`))
	}, config.CaptchaConfig{MinScore: 0.5})

	if err := gate.Evaluate(context.Background(), captchaSubmission("good-score")); err != nil {
		t.Errorf("Evaluate() error = %v", err)
	}
}

func TestCaptcha_ServerErrorFailsClosed(t *testing.T) {
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}, config.CaptchaConfig{})

	err := gate.Evaluate(context.Background(), captchaSubmission("tok"))
	assertSpamError(t, err, "challenge")
}

func TestCaptcha_ServerErrorFailsOpenWhenConfigured(t *testing.T) {
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}, config.CaptchaConfig{FailOpen: true})

	if err := gate.Evaluate(context.Background(), captchaSubmission("tok")); err != nil {
		t.Errorf("Evaluate() error = %v, want fail-open pass", err)
	}
}

func TestCaptcha_MalformedResponseFailsClosed(t *testing.T) {
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}, config.CaptchaConfig{})

	err := gate.Evaluate(context.Background(), captchaSubmission("tok"))
	assertSpamError(t, err, "challenge")
}

func TestCaptcha_TimeoutFailsClosed(t *testing.T) {
	gate := newVerifyGate(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read; without
		// it an HTTP/1 server never cancels r.Context() on client
		// disconnect and srv.Close deadlocks in cleanup.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}, config.CaptchaConfig{Timeout: 50 * time.Millisecond})

	start := time.Now()
	err := gate.Evaluate(context.Background(), captchaSubmission("tok"))
	assertSpamError(t, err, "challenge")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("verification took %v, timeout not applied", elapsed)
	}
}

func TestCaptcha_ProviderTokenFields(t *testing.T) {
	tests := []struct {
		provider   string
		tokenField string
	}{
		{"hcaptcha", "h-captcha-response"},
		{"recaptcha", "g-recaptcha-response"},
		{"turnstile", "cf-turnstile-response"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			gate := newCaptchaGate(config.FormConfig{}, config.CaptchaConfig{Provider: tt.provider, SecretKey: "0xtest"}, nil, testLogger())
			if gate.tokenField != tt.tokenField {
				t.Errorf("tokenField = %q, want %q", gate.tokenField, tt.tokenField)
			}
		})
	}
}

func TestCaptcha_PerFormSecretOverridesGlobal(t *testing.T) {
	cfg := config.FormConfig{
		Captcha: config.FormCaptchaConfig{SecretKey: "0xform"},
	}
	gate := newCaptchaGate(cfg, config.CaptchaConfig{Provider: "hcaptcha", SecretKey: "0xglobal"}, nil, testLogger())
	if gate.secretKey != "0xform" {
		t.Errorf("secretKey = %q, want per-form override", gate.secretKey)
	}
}
