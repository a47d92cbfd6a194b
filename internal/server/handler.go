package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/form"
	"github.com/formrelay/formrelay/internal/metrics"
	"github.com/formrelay/formrelay/internal/pipeline"
)

// SubmitHandler accepts form submissions, runs the pipeline, and maps the
// terminal state to an HTTP response plus metric increments.
type SubmitHandler struct {
	cfg     *config.Config
	pipe    *pipeline.Pipeline
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewSubmitHandler creates the submission endpoint handler.
func NewSubmitHandler(cfg *config.Config, pipe *pipeline.Pipeline, limiter *RateLimiter, logger *slog.Logger) *SubmitHandler {
	return &SubmitHandler{cfg: cfg, pipe: pipe, limiter: limiter, logger: logger}
}

// successResponse is the body for submissions that made it past every
// rejection stage. Status is "success" when at least one recipient got the
// notification, "error" when delivery failed entirely (the record is still
// persisted in that case).
type successResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Message   string `json:"message,omitempty"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
	Dispatch  string `json:"dispatch,omitempty"`
	Persisted *bool  `json:"persisted,omitempty"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Handle processes POST /api/v1/form/{formID}.
func (h *SubmitHandler) Handle(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	AddLogField(r.Context(), "form_id", formID)

	cfg, ok := h.cfg.FormByID(formID)
	if !ok {
		h.reject(w, r, formID, form.ErrFormNotFound(formID))
		return
	}

	ip := clientIP(r)
	if !h.limiter.Allow(formID, ip, cfg.RateLimitPerMinute) {
		h.reject(w, r, formID, form.ErrRateLimited())
		return
	}

	metrics.SubmissionsInProgress.Inc()
	defer metrics.SubmissionsInProgress.Dec()

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxRequestBytes)
	sub, err := parseSubmission(r, formID)
	if err != nil {
		h.reject(w, r, formID, form.ErrValidationRejected("body", err.Error()))
		return
	}

	result, perr := h.pipe.Process(r.Context(), cfg, sub)
	if perr != nil {
		var fe *form.Error
		if errors.As(perr, &fe) {
			h.reject(w, r, formID, fe)
			return
		}
		h.reject(w, r, formID, form.NewError(form.ErrorTypeExternalService, "internal error"))
		return
	}

	h.report(w, r, formID, cfg, result)
}

// reject maps a stage-local rejection to its HTTP response and counters.
func (h *SubmitHandler) reject(w http.ResponseWriter, r *http.Request, formID string, fe *form.Error) {
	AddError(r.Context(), fe)

	switch fe.Type {
	case form.ErrorTypeNotFound:
		// Unknown form ids are not counted; they would let arbitrary
		// clients mint metric label values.
	case form.ErrorTypeSpamRejected:
		metrics.SpamRejectionsTotal.WithLabelValues(formID, fe.Reason).Inc()
		metrics.SubmissionsTotal.WithLabelValues(formID, string(form.StageRejectedSpam)).Inc()
	case form.ErrorTypeValidationRejected:
		metrics.SubmissionsTotal.WithLabelValues(formID, string(form.StageRejectedValidation)).Inc()
	case form.ErrorTypeOriginRejected:
		metrics.SubmissionsTotal.WithLabelValues(formID, string(form.StageRejectedOrigin)).Inc()
	case form.ErrorTypeRateLimited:
		metrics.SubmissionsTotal.WithLabelValues(formID, "rate_limited").Inc()
	default:
		metrics.SubmissionsTotal.WithLabelValues(formID, "error").Inc()
	}

	respondJSON(w, fe.HTTPStatusCode(), errorResponse{Status: "error", Message: fe.Message})
}

// report emits counters for a processed submission and writes the response.
func (h *SubmitHandler) report(w http.ResponseWriter, r *http.Request, formID string, cfg config.FormConfig, result *pipeline.Result) {
	AddLogField(r.Context(), "submission_id", result.SubmissionID)

	for _, rr := range result.Outcome.Recipients {
		label := "failed"
		if rr.Delivered {
			label = "success"
		}
		metrics.EmailsSentTotal.WithLabelValues(formID, label).Inc()
	}

	dispatchFailed := result.Outcome.Stage == form.StageDispatchFailed
	if dispatchFailed {
		metrics.SubmissionsTotal.WithLabelValues(formID, string(form.StageDispatchFailed)).Inc()
	} else {
		metrics.SubmissionsTotal.WithLabelValues(formID, string(form.StageStored)).Inc()
	}

	resp := successResponse{
		Status:    "success",
		ID:        result.SubmissionID,
		Message:   cfg.SuccessMessage,
		Delivered: result.Outcome.Delivered(),
		Failed:    result.Outcome.Failed(),
	}

	if !result.Persisted {
		AddError(r.Context(), result.PersistErr)
		persisted := false
		resp.Persisted = &persisted
	}

	switch {
	case dispatchFailed && !result.Persisted:
		// Nothing was delivered and nothing was recorded: total failure.
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Status:  "error",
			Message: "submission could not be delivered or recorded",
		})
		return
	case dispatchFailed:
		// Deliberate durability-over-delivery choice: the record is kept
		// and the client is told delivery failed.
		resp.Status = "error"
		resp.Message = "delivery failed; your submission has been recorded"
		resp.Dispatch = "failed"
	}

	respondJSON(w, http.StatusOK, resp)
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
