package dispatch

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/form"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher renders a submission once and fans the notification out to
// every configured recipient. Sends to distinct recipients run concurrently;
// one recipient's failure never blocks or fails the others, and all
// recipients are attempted even after the first failure. Results are
// aggregated in the form's configured recipient order so the outcome is
// deterministic regardless of completion order.
type Dispatcher struct {
	sender      Sender
	defaultFrom string
	sendTimeout time.Duration
	logger      *slog.Logger
}

// New creates a dispatcher. sendTimeout bounds each individual recipient
// send; zero selects a 30s default.
func New(sender Sender, defaultFrom string, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Dispatcher{
		sender:      sender,
		defaultFrom: defaultFrom,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Dispatch delivers the notification for one submission. The returned
// outcome enumerates every recipient's individual result; Stage is
// StageDispatched when at least one recipient succeeded and
// StageDispatchFailed when all failed.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg config.FormConfig, sub *form.Submission, attachments []form.Attachment) form.DispatchOutcome {
	from := cfg.From
	if from == "" {
		from = d.defaultFrom
	}
	title := cfg.Subject
	if cfg.Name != "" {
		title = cfg.Name + ": " + cfg.Subject
	}

	html, err := renderHTML(title, sub.Fields)
	if err != nil {
		// Rendering is deterministic; a failure here means every recipient
		// would fail identically.
		d.logger.Error("failed to render notification",
			slog.String("form_id", sub.FormID),
			slog.String("error", err.Error()),
		)
		return failAll(cfg.Recipients, "render_failed")
	}
	text := renderText(title, sub.Fields)

	results := make([]form.RecipientResult, len(cfg.Recipients))
	var wg sync.WaitGroup
	for i, recipient := range cfg.Recipients {
		wg.Add(1)
		go func() {
			defer wg.Done()

			msg := &Message{
				From:        from,
				To:          recipient,
				Subject:     cfg.Subject,
				HTML:        html,
				Text:        text,
				Attachments: attachments,
			}

			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()

			if err := d.sender.Send(sendCtx, msg); err != nil {
				reason := classifyError(err)
				d.logger.Error("notification send failed",
					slog.String("form_id", sub.FormID),
					slog.String("recipient", recipient),
					slog.String("reason", reason),
					slog.String("error", err.Error()),
				)
				results[i] = form.RecipientResult{Recipient: recipient, Delivered: false, Reason: reason}
				return
			}
			results[i] = form.RecipientResult{Recipient: recipient, Delivered: true}
		}()
	}
	wg.Wait()

	outcome := form.DispatchOutcome{Stage: form.StageDispatched, Recipients: results}
	if outcome.Delivered() == 0 {
		outcome.Stage = form.StageDispatchFailed
	}
	return outcome
}

func failAll(recipients []string, reason string) form.DispatchOutcome {
	results := make([]form.RecipientResult, len(recipients))
	for i, r := range recipients {
		results[i] = form.RecipientResult{Recipient: r, Delivered: false, Reason: reason}
	}
	return form.DispatchOutcome{Stage: form.StageDispatchFailed, Recipients: results}
}

// classifyError buckets transport failures so operators can distinguish a
// slow server from a refused connection or a bad certificate. The pipeline
// never retries; retry policy belongs to an external delivery collaborator.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return "certificate"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}

	return "send_failed"
}
