package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templui/docvault/internal/ctxkeys"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/permission"
	"github.com/templui/docvault/internal/repository"
	"github.com/templui/docvault/internal/testutil"
)

type flakySink struct {
	failures int
	calls    int
	written  []*model.AuditLog
}

func (f *flakySink) Write(_ context.Context, log *model.AuditLog) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("database is locked")
	}
	f.written = append(f.written, log)
	return nil
}

func fastRecorder(sink Sink) *Recorder {
	r := NewRecorder(sink)
	r.base = time.Millisecond
	return r
}

func TestRecord_RetriesTransientFailures(t *testing.T) {
	sink := &flakySink{failures: 2}
	fastRecorder(sink).Record(context.Background(), Entry{ActorID: "u1", Action: model.ActionView, TargetType: model.TargetDocument, TargetID: "d1"})

	assert.Equal(t, 3, sink.calls)
	require.Len(t, sink.written, 1)
	assert.Equal(t, model.OutcomeSuccess, sink.written[0].Outcome)
}

func TestRecord_GivesUpWithoutPanicking(t *testing.T) {
	sink := &flakySink{failures: 100}
	assert.NotPanics(t, func() {
		fastRecorder(sink).Record(context.Background(), Entry{ActorID: "u1", Action: model.ActionView})
	})
	assert.Equal(t, 3, sink.calls)
	assert.Empty(t, sink.written)
}

func TestRecord_WritesEvenWhenContextCancelled(t *testing.T) {
	sink := &flakySink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fastRecorder(sink).Record(ctx, Entry{ActorID: "u1", Action: model.ActionDelete})
	assert.Len(t, sink.written, 1)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, model.OutcomeSuccess, OutcomeOf(nil))
	denied := fmt.Errorf("upload: %w", &permission.DeniedError{Reason: permission.ReasonInsufficient})
	assert.Equal(t, model.OutcomeDenied, OutcomeOf(denied))
	assert.Equal(t, model.OutcomeFailure, OutcomeOf(errors.New("disk full")))
}

func TestRecord_CarriesClientIP(t *testing.T) {
	sink := &flakySink{}
	rec := fastRecorder(sink)

	rec.Record(ctxkeys.WithClientIP(context.Background(), "198.51.100.4"), Entry{ActorID: "u1", Action: model.ActionView})
	rec.Record(context.Background(), Entry{ActorID: "u1", Action: model.ActionView})

	require.Len(t, sink.written, 2)
	assert.Equal(t, "198.51.100.4", sink.written[0].IPAddress)
	assert.Empty(t, sink.written[1].IPAddress)
}

func TestRecordResult_AppendsReasonToDetail(t *testing.T) {
	sink := &flakySink{}
	rec := fastRecorder(sink)

	rec.RecordResult(context.Background(), Entry{ActorID: "u1", Action: model.ActionUpload, Detail: "filename=x.pdf"},
		&permission.DeniedError{Reason: permission.ReasonInsufficient})
	rec.RecordResult(context.Background(), Entry{ActorID: "u1", Action: model.ActionUpload, Detail: "filename=y.pdf"}, nil)
	rec.RecordResult(context.Background(), Entry{ActorID: "u1", Action: model.ActionEdit}, errors.New("disk full"))

	require.Len(t, sink.written, 3)
	assert.Equal(t, "filename=x.pdf error=insufficient permission: "+permission.ReasonInsufficient, sink.written[0].Detail)
	assert.Equal(t, "filename=y.pdf", sink.written[1].Detail)
	assert.Equal(t, "error=disk full", sink.written[2].Detail)
}

func TestStoreSink_WritesToTenantScope(t *testing.T) {
	s := testutil.NewStore(t)
	ctx, tenant := testutil.NewTenant(t, s, "acme", model.IsolationSchema)
	rec := NewRecorder(StoreSink(s))

	rec.RecordResult(ctx, Entry{ActorID: "u2", Action: model.ActionEdit, TargetType: model.TargetDocument, TargetID: "d1"},
		&permission.DeniedError{Reason: permission.ReasonInsufficient})

	r, err := s.Scoped(ctx)
	require.NoError(t, err)
	logs, err := r.AuditLogs.List(ctx, repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.OutcomeDenied, logs[0].Outcome)
	assert.Equal(t, tenant.ID, logs[0].TenantID)
	assert.Contains(t, logs[0].Detail, "insufficient permission")
}
