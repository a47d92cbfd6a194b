// Package form defines the core data model for the submission pipeline.
package form

// Field is a single submitted form field. Submissions keep fields as an
// ordered slice rather than a map so duplicate keys and original order
// survive all the way into storage.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Submission is one inbound form submission as received over HTTP.
// It is created per request and consumed by the pipeline; attachment
// payloads are handed off to the attachment processor and must not be
// referenced afterwards.
type Submission struct {
	FormID      string
	Fields      []Field
	Attachments []RawAttachment
	Origin      string
	RemoteIP    string
}

// Value returns the first submitted value for the named field, or "" if the
// field was not submitted.
func (s *Submission) Value(name string) string {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// RawAttachment is an uploaded file exactly as it arrived in the request,
// before validation and normalization.
type RawAttachment struct {
	FieldName   string
	Filename    string
	ContentType string
	Content     []byte
}

// Attachment is a validated, normalized upload ready to be attached to the
// outbound notification. The byte payload is owned by the pipeline for the
// duration of the send and never outlives the request.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
}

// Stage identifies how far a submission made it through the pipeline.
type Stage string

const (
	StageRejectedOrigin     Stage = "rejected_origin"
	StageRejectedSpam       Stage = "rejected_spam"
	StageRejectedValidation Stage = "rejected_validation"
	StageDispatched         Stage = "dispatched"
	StageDispatchFailed     Stage = "dispatch_failed"
	StageStored             Stage = "stored"
)

// RecipientResult records the delivery outcome for a single recipient.
type RecipientResult struct {
	Recipient string `json:"recipient"`
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}

// DispatchOutcome is the per-recipient result of fanning a notification out
// to every configured recipient, plus the pipeline stage reached. Recipients
// appear in the form's configured order regardless of send completion order.
type DispatchOutcome struct {
	Stage      Stage
	Recipients []RecipientResult
}

// Delivered returns the number of recipients that accepted the notification.
func (o DispatchOutcome) Delivered() int {
	n := 0
	for _, r := range o.Recipients {
		if r.Delivered {
			n++
		}
	}
	return n
}

// Failed returns the number of recipients whose send failed.
func (o DispatchOutcome) Failed() int {
	return len(o.Recipients) - o.Delivered()
}
