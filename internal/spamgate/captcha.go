package spamgate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/form"
)

// Default siteverify endpoints and the form field each provider's widget
// submits its token under.
var captchaProviders = map[string]struct {
	verifyURL  string
	tokenField string
}{
	"hcaptcha":  {"https://hcaptcha.com/siteverify", "h-captcha-response"},
	"recaptcha": {"https://www.google.com/recaptcha/api/siteverify", "g-recaptcha-response"},
	"turnstile": {"https://challenges.cloudflare.com/turnstile/v0/siteverify", "cf-turnstile-response"},
}

const defaultCaptchaTimeout = 10 * time.Second

// captchaGate verifies a challenge token against the provider's siteverify
// API. Verification-service errors are rejections, not pass-throughs,
// unless fail_open is configured. The gate makes exactly one attempt per
// submission; it never retries.
type captchaGate struct {
	provider   string
	tokenField string
	verifyURL  string
	secretKey  string
	minScore   float64
	timeout    time.Duration
	failOpen   bool
	client     *http.Client
	logger     *slog.Logger
}

func newCaptchaGate(cfg config.FormConfig, global config.CaptchaConfig, client *http.Client, logger *slog.Logger) *captchaGate {
	provider := global.Provider
	if provider == "" {
		provider = "hcaptcha"
	}
	defaults := captchaProviders[provider]

	g := &captchaGate{
		provider:   provider,
		tokenField: defaults.tokenField,
		verifyURL:  defaults.verifyURL,
		secretKey:  global.SecretKey,
		minScore:   global.MinScore,
		timeout:    global.Timeout,
		failOpen:   global.FailOpen,
		client:     client,
		logger:     logger,
	}

	if global.VerifyURL != "" {
		g.verifyURL = global.VerifyURL
	}
	if cfg.Captcha.SecretKey != "" {
		g.secretKey = cfg.Captcha.SecretKey
	}
	if cfg.Captcha.MinScore > 0 {
		g.minScore = cfg.Captcha.MinScore
	}
	if g.timeout <= 0 {
		g.timeout = defaultCaptchaTimeout
	}

	return g
}

func (g *captchaGate) Name() string { return "challenge" }

// verifyResponse is the siteverify reply shared by all supported providers.
// Score is only populated by score-based providers (reCAPTCHA v3).
type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score"`
	ErrorCodes []string `json:"error-codes"`
}

func (g *captchaGate) Evaluate(ctx context.Context, sub *form.Submission) error {
	token := sub.Value(g.tokenField)
	if token == "" {
		return form.ErrSpamRejected("challenge")
	}

	resp, err := g.verify(ctx, token, sub.RemoteIP)
	if err != nil {
		g.logger.Warn("challenge verification unavailable",
			slog.String("form_id", sub.FormID),
			slog.String("provider", g.provider),
			slog.String("error", err.Error()),
		)
		if g.failOpen {
			return nil
		}
		return form.ErrSpamRejected("challenge")
	}

	if !resp.Success {
		return form.ErrSpamRejected("challenge")
	}
	if g.minScore > 0 && resp.Score != nil && *resp.Score < g.minScore {
		return form.ErrSpamRejected("challenge")
	}

	return nil
}

// verify performs the single outbound call to the provider. The secret key
// never appears in logs or errors.
func (g *captchaGate) verify(ctx context.Context, token, remoteIP string) (*verifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data := url.Values{}
	data.Set("secret", g.secretKey)
	data.Set("response", token)
	if remoteIP != "" {
		data.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.verifyURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("verification API returned status %d", res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read verification response: %w", err)
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("malformed verification response: %w", err)
	}

	return &vr, nil
}
