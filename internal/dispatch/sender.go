// Package dispatch renders a submission into a notification email and
// delivers it to every configured recipient.
package dispatch

import (
	"context"

	"github.com/formrelay/formrelay/internal/form"
)

// Sender is the interface that delivery backends must implement. Each
// backend handles the actual handoff of a prepared message to the target
// transport (SMTP server, stdout, a fake in tests).
type Sender interface {
	// Send delivers a message to its single recipient.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *Message) error

	// Name returns the human-readable name of this backend.
	Name() string
}

// Message is a fully-prepared notification ready for sending. The dispatcher
// builds one Message per recipient from a single rendered body.
type Message struct {
	From        string
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []form.Attachment
}
