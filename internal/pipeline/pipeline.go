// Package pipeline runs a form submission through the intake-and-dispatch
// stages: origin validation, spam gates, shape limits, attachment
// processing, recipient fan-out, and persistence. Stages run in a fixed
// order and any of the first four may short-circuit with a terminal
// rejection that never reaches the dispatcher or the store.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/dispatch"
	"github.com/formrelay/formrelay/internal/form"
	"github.com/formrelay/formrelay/internal/spamgate"
	"github.com/formrelay/formrelay/internal/storage"
)

// Pipeline processes submissions. One Pipeline serves all forms; the only
// state shared between concurrent executions is the store's connection pool
// and the dispatcher's transport, both safe for concurrent use.
type Pipeline struct {
	gates      *spamgate.Factory
	dispatcher *dispatch.Dispatcher
	store      storage.SubmissionStore
	logger     *slog.Logger
}

// New creates a pipeline.
func New(gates *spamgate.Factory, dispatcher *dispatch.Dispatcher, store storage.SubmissionStore, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		gates:      gates,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
	}
}

// Result is the terminal state of a submission that passed all rejection
// stages. Persisted is false with PersistErr set when dispatch happened but
// the record could not be stored; that combination is a partial success,
// not a total failure.
type Result struct {
	SubmissionID string
	Outcome      form.DispatchOutcome
	Persisted    bool
	PersistErr   error
}

// Process runs one submission through the pipeline. A non-nil error is
// always a *form.Error describing a stage-local rejection; dispatch and
// persistence failures are reported through the Result instead, because the
// submission itself was accepted.
func (p *Pipeline) Process(ctx context.Context, cfg config.FormConfig, sub *form.Submission) (*Result, error) {
	if err := validateOrigin(sub.Origin, cfg.AllowedDomains); err != nil {
		return nil, err
	}

	for _, gate := range p.gates.ForForm(cfg) {
		if err := gate.Evaluate(ctx, sub); err != nil {
			p.logger.Warn("submission rejected by spam gate",
				slog.String("form_id", sub.FormID),
				slog.String("gate", gate.Name()),
			)
			return nil, err
		}
	}

	if err := checkLimits(cfg, sub); err != nil {
		return nil, err
	}

	attachments, err := processAttachments(sub)
	if err != nil {
		return nil, err
	}

	// The client disconnecting before any send has occurred aborts early.
	if err := ctx.Err(); err != nil {
		return nil, form.NewError(form.ErrorTypeExternalService, "request cancelled").WithReason("cancelled")
	}

	outcome := p.dispatcher.Dispatch(ctx, cfg, sub, attachments)

	result := &Result{
		SubmissionID: uuid.New().String(),
		Outcome:      outcome,
	}

	// A send has been attempted, so persistence must complete even if the
	// client has gone away; an emailed-but-unrecorded submission is worse
	// than a slightly late response.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	record := &storage.SubmissionRecord{
		ID:          result.SubmissionID,
		FormID:      sub.FormID,
		SubmittedAt: time.Now().UTC(),
		Fields:      sub.Fields,
		Attachments: attachmentMeta(attachments),
		RemoteIP:    sub.RemoteIP,
		Result:      recordResult(outcome),
		Recipients:  outcome.Recipients,
	}

	if err := p.store.Save(storeCtx, record); err != nil {
		p.logger.Error("failed to persist submission",
			slog.String("form_id", sub.FormID),
			slog.String("submission_id", result.SubmissionID),
			slog.String("error", err.Error()),
		)
		result.PersistErr = form.ErrPersistenceFailed(err)
		return result, nil
	}

	result.Persisted = true
	return result, nil
}

// recordResult maps the dispatch outcome to the stage stored with the
// record. Submissions with at least one delivery are recorded as stored;
// a total dispatch failure is still persisted, flagged as such.
func recordResult(outcome form.DispatchOutcome) form.Stage {
	if outcome.Stage == form.StageDispatchFailed {
		return form.StageDispatchFailed
	}
	return form.StageStored
}

func attachmentMeta(attachments []form.Attachment) []storage.AttachmentMeta {
	if len(attachments) == 0 {
		return nil
	}
	meta := make([]storage.AttachmentMeta, len(attachments))
	for i, att := range attachments {
		meta[i] = storage.AttachmentMeta{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        att.Size,
		}
	}
	return meta
}
