package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdoutSender prints messages to standard output in a human-readable
// format instead of delivering them. Useful for local development.
type StdoutSender struct {
	writer io.Writer
}

// NewStdoutSender creates a sender that writes to os.Stdout.
func NewStdoutSender() *StdoutSender {
	return &StdoutSender{writer: os.Stdout}
}

// NewStdoutSenderWithWriter creates a sender that writes to the given
// writer. This is useful for testing.
func NewStdoutSenderWithWriter(w io.Writer) *StdoutSender {
	return &StdoutSender{writer: w}
}

func (s *StdoutSender) Name() string { return "stdout" }

// Send prints the message and always reports success.
func (s *StdoutSender) Send(_ context.Context, msg *Message) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("Body:\n")
	b.WriteString(msg.Text + "\n")

	if len(msg.Attachments) > 0 {
		names := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			names = append(names, fmt.Sprintf("%s (%d bytes)", att.Filename, att.Size))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(names, ", "))
	}

	b.WriteString("========================================\n")

	fmt.Fprint(s.writer, b.String())
	return nil
}
