package form

import (
	"fmt"
	"net/http"
)

// ErrorType categorizes pipeline failures. Business-rule rejections
// (origin, spam, validation) are distinct from infrastructure trouble
// (dispatch, persistence, external services) so operators can tell users
// spamming us apart from our mail server being down.
type ErrorType string

const (
	// ErrorTypeNotFound indicates the form id does not exist.
	ErrorTypeNotFound ErrorType = "form_not_found"

	// ErrorTypeOriginRejected indicates the submitting origin is not in the
	// form's allowed-domain set.
	ErrorTypeOriginRejected ErrorType = "origin_rejected"

	// ErrorTypeSpamRejected indicates a spam gate (honeypot or challenge
	// verification) rejected the submission.
	ErrorTypeSpamRejected ErrorType = "spam_rejected"

	// ErrorTypeValidationRejected indicates a field or attachment violated
	// the form's shape limits.
	ErrorTypeValidationRejected ErrorType = "validation_rejected"

	// ErrorTypeRateLimited indicates the request was rejected before the
	// pipeline ran.
	ErrorTypeRateLimited ErrorType = "rate_limited"

	// ErrorTypeDispatchFailed indicates delivery failed for every recipient.
	ErrorTypeDispatchFailed ErrorType = "dispatch_failed"

	// ErrorTypePersistenceFailed indicates the submission record could not
	// be stored.
	ErrorTypePersistenceFailed ErrorType = "persistence_failed"

	// ErrorTypeExternalService indicates an outbound dependency failed
	// (timeout, network error, malformed response).
	ErrorTypeExternalService ErrorType = "external_service_error"
)

// Error is the canonical pipeline error. Reason carries the specific cause
// within a type (e.g. "honeypot" vs "challenge" for spam rejections) and
// feeds the metrics label of the same name.
type Error struct {
	Type       ErrorType `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the status code to surface to the client.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeOriginRejected:
		return http.StatusForbidden
	case ErrorTypeSpamRejected, ErrorTypeValidationRejected:
		return http.StatusBadRequest
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeDispatchFailed, ErrorTypePersistenceFailed, ErrorTypeExternalService:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a pipeline error.
func NewError(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// WithReason attaches a specific cause to the error.
func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

// Convenience constructors for the pipeline stages.

// ErrFormNotFound creates a not-found error for an unknown form id.
func ErrFormNotFound(formID string) *Error {
	return NewError(ErrorTypeNotFound, fmt.Sprintf("form %q not found", formID))
}

// ErrOriginRejected creates an origin rejection error.
func ErrOriginRejected(origin string) *Error {
	return NewError(ErrorTypeOriginRejected, fmt.Sprintf("origin %q is not allowed", origin))
}

// ErrSpamRejected creates a spam rejection with the gate name as reason.
func ErrSpamRejected(gate string) *Error {
	return NewError(ErrorTypeSpamRejected, "submission rejected").WithReason(gate)
}

// ErrValidationRejected creates a validation rejection naming the offending
// field or attachment.
func ErrValidationRejected(subject, message string) *Error {
	return NewError(ErrorTypeValidationRejected, message).WithReason(subject)
}

// ErrRateLimited creates a rate-limit rejection.
func ErrRateLimited() *Error {
	return NewError(ErrorTypeRateLimited, "too many requests")
}

// ErrDispatchFailed creates a total dispatch failure error.
func ErrDispatchFailed() *Error {
	return NewError(ErrorTypeDispatchFailed, "delivery failed for all recipients")
}

// ErrPersistenceFailed creates a storage failure error.
func ErrPersistenceFailed(err error) *Error {
	return NewError(ErrorTypePersistenceFailed, err.Error())
}
