// Package audit appends the trail of permission-checked and mutating operations.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/templui/docvault/internal/ctxkeys"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
)

type Entry struct {
	ActorID    string
	Action     string
	TargetType model.TargetKind
	TargetID   string
	Outcome    string
	Detail     string
}

// Sink writes one audit row. *repository.Store satisfies it through StoreSink.
type Sink interface {
	Write(ctx context.Context, log *model.AuditLog) error
}

type storeSink struct {
	store *repository.Store
}

// StoreSink writes through the pool, outside any transaction of the audited operation,
// so rolled back operations are still recorded.
func StoreSink(store *repository.Store) Sink {
	return &storeSink{store: store}
}

func (s *storeSink) Write(ctx context.Context, log *model.AuditLog) error {
	r, err := s.store.Scoped(ctx)
	if err != nil {
		return err
	}
	return r.AuditLogs.Create(ctx, log)
}

type Recorder struct {
	sink     Sink
	attempts uint64
	base     time.Duration
	now      func() time.Time
}

func NewRecorder(sink Sink) *Recorder {
	return &Recorder{
		sink:     sink,
		attempts: 3,
		base:     50 * time.Millisecond,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record writes e synchronously, retrying with exponential backoff. It never fails the
// caller: a write that keeps failing is logged at error level for alerting.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	log := &model.AuditLog{
		ID:         uuid.NewString(),
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: string(e.TargetType),
		TargetID:   e.TargetID,
		Outcome:    e.Outcome,
		Detail:     e.Detail,
		IPAddress:  ctxkeys.ClientIP(ctx),
		CreatedAt:  r.now(),
	}
	if log.Outcome == "" {
		log.Outcome = model.OutcomeSuccess
	}

	// The audited operation may have been cancelled; the record must still be written.
	ctx = context.WithoutCancel(ctx)
	backoff := retry.WithMaxRetries(r.attempts-1, retry.NewExponential(r.base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.sink.Write(ctx, log); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		slog.Error("audit write failed",
			"error", err,
			"action", log.Action,
			"actor", log.ActorID,
			"target_type", log.TargetType,
			"target_id", log.TargetID,
			"outcome", log.Outcome,
		)
	}
}

// RecordResult records the outcome derived from err, the error an operation returned.
// A failure reason is appended to any detail the operation already set.
func (r *Recorder) RecordResult(ctx context.Context, e Entry, err error) {
	e.Outcome = OutcomeOf(err)
	if err != nil {
		if e.Detail != "" {
			e.Detail += " "
		}
		e.Detail += "error=" + err.Error()
	}
	r.Record(ctx, e)
}

// OutcomeOf maps an operation error to an audit outcome.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return model.OutcomeSuccess
	case errors.Is(err, permission.ErrInsufficientPermission):
		return model.OutcomeDenied
	default:
		return model.OutcomeFailure
	}
}
