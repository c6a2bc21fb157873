package processing

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/ocr"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/repository"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/breaker"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/idempotency"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/queue"
)

// fakeEngine stands in for the external OCR engine.
type fakeEngine struct {
	mu       sync.Mutex
	requests []*ocr.ProcessRequest
	status   string
	err      error
	nextTask int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{status: "queued"}
}

func (f *fakeEngine) AcceptAs(status string) { f.mu.Lock(); f.status = status; f.mu.Unlock() }

func (f *fakeEngine) Fail(err error) { f.mu.Lock(); f.err = err; f.mu.Unlock() }

func (f *fakeEngine) Recover() { f.mu.Lock(); f.err = nil; f.mu.Unlock() }

func (f *fakeEngine) Requests() []*ocr.ProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*ocr.ProcessRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeEngine) StartProcessing(_ context.Context, req *ocr.ProcessRequest) (*ocr.ProcessResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	f.nextTask++
	return &ocr.ProcessResponse{
		TaskID: fmt.Sprintf("task-%d", f.nextTask),
		Status: f.status,
	}, nil
}

type fakeResolver struct {
	missing map[string]bool
}

func (f *fakeResolver) Resolve(_ context.Context, filePath string) (string, error) {
	if f.missing[filePath] {
		return "", fmt.Errorf("document file missing: %w", iofs.ErrNotExist)
	}
	return "/mnt/documents/" + filePath, nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []*queue.CompletionEvent
	err    error
}

func (f *fakeDispatcher) DispatchCompleted(_ context.Context, event *queue.CompletionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fixture struct {
	svc        Service
	repo       *repository.MemoryRepository
	engine     *fakeEngine
	resolver   *fakeResolver
	dispatcher *fakeDispatcher
	breaker    *breaker.CircuitBreaker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger()
	f := &fixture{
		repo:       repository.NewMemoryRepository(),
		engine:     newFakeEngine(),
		resolver:   &fakeResolver{missing: make(map[string]bool)},
		dispatcher: &fakeDispatcher{},
		breaker:    breaker.New(breaker.Config{Name: "ocr-engine", FailureThreshold: 3, ResetTimeout: time.Minute}, log),
	}
	f.svc = NewService(
		f.repo,
		f.resolver,
		f.engine,
		f.breaker,
		idempotency.NewService(idempotency.NewMemoryStore(), time.Hour),
		f.dispatcher,
		log,
		nil,
	)
	return f
}

func (f *fixture) register(t *testing.T, id, path string) *models.ProcessingRecord {
	t.Helper()
	rec, err := f.svc.Register(context.Background(), id, path, "")
	require.NoError(t, err)
	return rec
}

func TestSubmitStoresCorrelationID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "doc-1", "invoices/a.pdf")

	rec, err := f.svc.Submit(ctx, "doc-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusQueued, rec.Status)
	assert.NotEmpty(t, rec.CorrelationID)

	require.Len(t, f.engine.Requests(), 1)
	req := f.engine.Requests()[0]
	assert.Equal(t, "/mnt/documents/invoices/a.pdf", req.FilePath)
	assert.Equal(t, "eng", req.Language)
}

func TestSubmitEngineStartsImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.AcceptAs("processing")
	f.register(t, "doc-1", "a.pdf")

	rec, err := f.svc.Submit(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, rec.Status)
}

func TestSubmitMissingFileFailsFast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.resolver.missing["gone.pdf"] = true
	f.register(t, "doc-1", "gone.pdf")

	rec, err := f.svc.Submit(ctx, "doc-1")
	require.Error(t, err)

	// No outbound HTTP call was attempted.
	assert.Empty(t, f.engine.Requests())
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Contains(t, rec.ProcessingError, "not found")
	assert.Empty(t, rec.CorrelationID)
}

func TestSubmitEngineErrorMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.Fail(errors.New("connection refused"))
	f.register(t, "doc-1", "a.pdf")

	rec, err := f.svc.Submit(ctx, "doc-1")
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Contains(t, rec.ProcessingError, "connection refused")
}

func TestSubmitCircuitOpenMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.Fail(errors.New("timeout"))

	// Trip the breaker.
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("doc-%d", i)
		f.register(t, id, "a.pdf")
		_, err := f.svc.Submit(ctx, id)
		require.Error(t, err)
	}
	assert.Equal(t, breaker.StateOpen, f.breaker.State())

	f.engine.Recover()
	f.register(t, "doc-n", "a.pdf")
	rec, err := f.svc.Submit(ctx, "doc-n")
	require.ErrorIs(t, err, breaker.ErrOpen)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Contains(t, rec.ProcessingError, "circuit open")
	// The rejected call never reached the engine.
	assert.Len(t, f.engine.Requests(), 3)
}

func TestSubmitOnlyFromQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.AcceptAs("processing")
	f.register(t, "doc-1", "a.pdf")

	_, err := f.svc.Submit(ctx, "doc-1")
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, "doc-1")
	require.ErrorIs(t, err, ErrNotSubmittable)
}

func TestSubmitRejectedWhileQueuedAtEngine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "doc-1", "a.pdf")

	// The engine accepted but has not started; the record is still QUEUED
	// with a correlation id. A second submit must not create a second task.
	_, err := f.svc.Submit(ctx, "doc-1")
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, "doc-1")
	require.ErrorIs(t, err, ErrNotSubmittable)
	assert.Len(t, f.engine.Requests(), 1)
}

func TestRetryResetsAndResubmits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.Fail(errors.New("boom"))
	f.register(t, "doc-1", "a.pdf")

	_, err := f.svc.Submit(ctx, "doc-1")
	require.Error(t, err)

	f.engine.Recover()
	rec, err := f.svc.Retry(ctx, "doc-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusQueued, rec.Status)
	assert.Empty(t, rec.ProcessingError)
	assert.Nil(t, rec.Progress)
	assert.NotEmpty(t, rec.CorrelationID)
}

func TestRetryOnlyFromFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "doc-1", "a.pdf")

	_, err := f.svc.Retry(ctx, "doc-1")
	require.ErrorIs(t, err, ErrRetryNotAllowed)
}

func TestGetStatusUnknownDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetStatus(context.Background(), "nope")
	require.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func submitted(t *testing.T, f *fixture, id string) *models.ProcessingRecord {
	t.Helper()
	f.register(t, id, "a.pdf")
	rec, err := f.svc.Submit(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestCallbackProgressUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := submitted(t, f, "doc-1")

	p := 50
	out, err := f.svc.HandleCallback(ctx, &Callback{
		TaskID:           rec.CorrelationID,
		DocumentID:       "doc-1",
		Status:           "processing",
		Progress:         &p,
		CurrentOperation: "extracting text",
	})
	require.NoError(t, err)

	assert.False(t, out.Replay)
	assert.Equal(t, models.StatusProcessing, out.Record.Status)
	require.NotNil(t, out.Record.Progress)
	assert.Equal(t, 50, *out.Record.Progress)
	assert.Equal(t, "extracting text", out.Record.CurrentOperation)
}

func TestCallbackTaskMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	submitted(t, f, "doc-1")

	p := 50
	_, err := f.svc.HandleCallback(ctx, &Callback{
		TaskID:     "task-stale",
		DocumentID: "doc-1",
		Status:     "processing",
		Progress:   &p,
	})
	require.ErrorIs(t, err, ErrTaskMismatch)

	rec, _ := f.svc.GetStatus(ctx, "doc-1")
	assert.Equal(t, models.StatusQueued, rec.Status)
	assert.Nil(t, rec.Progress)
}

func TestCallbackInvalidProgressRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := submitted(t, f, "doc-1")

	p := 150
	_, err := f.svc.HandleCallback(ctx, &Callback{
		TaskID:     rec.CorrelationID,
		DocumentID: "doc-1",
		Status:     "processing",
		Progress:   &p,
	})
	var invalid *models.ErrInvalidProgress
	require.ErrorAs(t, err, &invalid)

	got, _ := f.svc.GetStatus(ctx, "doc-1")
	assert.Nil(t, got.Progress)
}

func TestCallbackCompletionDispatchesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := submitted(t, f, "doc-1")

	cb := &Callback{
		TaskID:     rec.CorrelationID,
		DocumentID: "doc-1",
		Status:     "completed",
		Result:     &models.OCRResult{Text: "X", Confidence: 0.9, Language: "en"},
	}

	out, err := f.svc.HandleCallback(ctx, cb)
	require.NoError(t, err)
	assert.False(t, out.Replay)
	assert.Equal(t, models.StatusCompleted, out.Record.Status)
	require.NotNil(t, out.Record.Progress)
	assert.Equal(t, 100, *out.Record.Progress)
	assert.Empty(t, out.Record.CurrentOperation)
	require.NotNil(t, out.Record.Result)
	assert.Equal(t, "X", out.Record.Result.Text)
	assert.Equal(t, 1, f.dispatcher.count())

	// Identical re-delivery: same response, zero additional side effects.
	again, err := f.svc.HandleCallback(ctx, cb)
	require.NoError(t, err)
	assert.True(t, again.Replay)
	assert.Equal(t, out.Record.Status, again.Record.Status)
	assert.Equal(t, 1, f.dispatcher.count())
}

func TestCallbackCompletionRequiresResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := submitted(t, f, "doc-1")

	_, err := f.svc.HandleCallback(ctx, &Callback{
		TaskID:     rec.CorrelationID,
		DocumentID: "doc-1",
		Status:     "completed",
	})
	require.ErrorIs(t, err, ErrMissingResult)

	got, _ := f.svc.GetStatus(ctx, "doc-1")
	assert.NotEqual(t, models.StatusCompleted, got.Status)
}

func TestCallbackFailurePreservesProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := submitted(t, f, "doc-1")

	p := 70
	_, err := f.svc.HandleCallback(ctx, &Callback{
		TaskID:     rec.CorrelationID,
		DocumentID: "doc-1",
		Status:     "processing",
		Progress:   &p,
	})
	require.NoError(t, err)

	out, err := f.svc.HandleCallback(ctx, &Callback{
		TaskID:     rec.CorrelationID,
		DocumentID: "doc-1",
		Status:     "failed",
		Error:      "engine crashed",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, out.Record.Status)
	assert.Equal(t, "engine crashed", out.Record.ProcessingError)
	require.NotNil(t, out.Record.Progress)
	assert.Equal(t, 70, *out.Record.Progress)
}

func TestCallbackFailureRequiresError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := submitted(t, f, "doc-1")

	_, err := f.svc.HandleCallback(ctx, &Callback{
		TaskID:     rec.CorrelationID,
		DocumentID: "doc-1",
		Status:     "failed",
	})
	require.ErrorIs(t, err, ErrMissingError)
}

func TestCallbackUnknownDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.HandleCallback(context.Background(), &Callback{
		TaskID:     "task-1",
		DocumentID: "ghost",
		Status:     "failed",
		Error:      "x",
	})
	require.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestFullProcessingScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := submitted(t, f, "doc-1")
	taskID := rec.CorrelationID

	p := 50
	out, err := f.svc.HandleCallback(ctx, &Callback{
		TaskID: taskID, DocumentID: "doc-1", Status: "processing",
		Progress: &p, CurrentOperation: "running ocr",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, out.Record.Status)
	assert.Equal(t, 50, *out.Record.Progress)

	done := &Callback{
		TaskID: taskID, DocumentID: "doc-1", Status: "completed",
		Result: &models.OCRResult{Text: "X", Confidence: 0.9},
	}
	out, err = f.svc.HandleCallback(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, out.Record.Status)
	assert.Equal(t, 100, *out.Record.Progress)
	assert.Equal(t, "X", out.Record.Result.Text)

	again, err := f.svc.HandleCallback(ctx, done)
	require.NoError(t, err)
	assert.True(t, again.Replay)
	assert.Equal(t, 1, f.dispatcher.count())

	// A completed record rejects further mutation outright.
	p2 := 10
	_, err = f.svc.HandleCallback(ctx, &Callback{
		TaskID: taskID, DocumentID: "doc-1", Status: "processing", Progress: &p2,
	})
	var invalid *models.ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
}
