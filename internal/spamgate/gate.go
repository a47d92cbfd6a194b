// Package spamgate implements submission-level spam detection. Gates are
// evaluated in a fixed order and the first rejection wins; the zero-cost
// honeypot check always runs before any gate that touches the network.
package spamgate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/form"
)

// Gate evaluates one spam signal for a submission. A nil return means the
// gate has no objection; a *form.Error return terminates the pipeline.
type Gate interface {
	Name() string
	Evaluate(ctx context.Context, sub *form.Submission) error
}

// Factory builds the ordered gate chain for a form from its configuration.
type Factory struct {
	global config.CaptchaConfig
	client *http.Client
	logger *slog.Logger
}

// NewFactory creates a gate factory. The HTTP client is shared across
// requests; per-call timeouts come from the captcha configuration.
func NewFactory(global config.CaptchaConfig, client *http.Client, logger *slog.Logger) *Factory {
	if client == nil {
		client = http.DefaultClient
	}
	return &Factory{global: global, client: client, logger: logger}
}

// ForForm returns the gates for one form in evaluation order: honeypot
// first, then challenge verification when enabled globally or per-form.
func (f *Factory) ForForm(cfg config.FormConfig) []Gate {
	var gates []Gate

	if cfg.HoneypotEnabled && cfg.HoneypotField != "" {
		gates = append(gates, &honeypotGate{field: cfg.HoneypotField})
	}

	if cfg.Captcha.Enabled || f.global.Enabled {
		gates = append(gates, newCaptchaGate(cfg, f.global, f.client, f.logger))
	}

	return gates
}
