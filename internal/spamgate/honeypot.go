package spamgate

import (
	"context"

	"github.com/formrelay/formrelay/internal/form"
)

// honeypotGate rejects submissions that fill a hidden field legitimate
// users never see. It costs nothing and runs before any network gate.
type honeypotGate struct {
	field string
}

func (g *honeypotGate) Name() string { return "honeypot" }

func (g *honeypotGate) Evaluate(_ context.Context, sub *form.Submission) error {
	if sub.Value(g.field) != "" {
		return form.ErrSpamRejected("honeypot")
	}
	return nil
}
