// Package storage defines the interface for persisting accepted submissions.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/formrelay/formrelay/internal/form"
)

// ErrNotFound is returned when a submission record does not exist.
var ErrNotFound = errors.New("submission not found")

// AttachmentMeta describes an uploaded file without its payload. Raw bytes
// never reach storage; they do not outlive the request.
type AttachmentMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// SubmissionRecord is the durable record of one accepted submission.
// Created once, immutable thereafter.
type SubmissionRecord struct {
	ID          string
	FormID      string
	SubmittedAt time.Time
	// Fields preserves the original submission order, duplicates included.
	Fields      []form.Field
	Attachments []AttachmentMeta
	RemoteIP    string
	// Result is the terminal pipeline stage ("stored" after a successful
	// dispatch, "dispatch_failed" when every recipient failed).
	Result     form.Stage
	Recipients []form.RecipientResult
}

// SubmissionStore persists submission records. Implementations must be safe
// for concurrent use; the underlying connection handling is pooled, not a
// single exclusive handle.
type SubmissionStore interface {
	// Save durably stores a record. Either the full record is written or
	// nothing is.
	Save(ctx context.Context, rec *SubmissionRecord) error

	// Get retrieves a record by id. Returns ErrNotFound if it does not
	// exist.
	Get(ctx context.Context, id string) (*SubmissionRecord, error)

	// ListByForm returns records for a form, newest first.
	ListByForm(ctx context.Context, formID string, limit, offset int) ([]*SubmissionRecord, error)

	// Close releases the store's resources.
	Close() error
}
