package processing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/ocr"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/repository"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/breaker"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/idempotency"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/queue"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/storage"
)

type service struct {
	repo        repository.RecordRepository
	resolver    storage.Resolver
	engine      ocr.Client
	breaker     *breaker.CircuitBreaker
	idempotency *idempotency.Service
	dispatcher  queue.Dispatcher
	logger      logger.Logger

	defaultLanguage string
}

// ServiceConfig holds the service-level tunables.
type ServiceConfig struct {
	// DefaultLanguage is used when a record carries no language code.
	DefaultLanguage string
}

// NewService wires the orchestration core. The breaker must be the single
// shared instance guarding the OCR engine endpoint.
func NewService(
	repo repository.RecordRepository,
	resolver storage.Resolver,
	engine ocr.Client,
	cb *breaker.CircuitBreaker,
	idem *idempotency.Service,
	dispatcher queue.Dispatcher,
	log logger.Logger,
	svcCfg *ServiceConfig,
) Service {
	if svcCfg == nil {
		svcCfg = &ServiceConfig{}
	}
	if svcCfg.DefaultLanguage == "" {
		svcCfg.DefaultLanguage = "eng"
	}
	return &service{
		repo:            repo,
		resolver:        resolver,
		engine:          engine,
		breaker:         cb,
		idempotency:     idem,
		dispatcher:      dispatcher,
		logger:          log,
		defaultLanguage: svcCfg.DefaultLanguage,
	}
}

func (s *service) Register(ctx context.Context, id, filePath, language string) (*models.ProcessingRecord, error) {
	record := &models.ProcessingRecord{
		ID:        id,
		FilePath:  filePath,
		Language:  language,
		Status:    models.StatusQueued,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("Processing record registered",
		logger.String("documentId", id),
		logger.String("filePath", filePath),
	)
	return record, nil
}

func (s *service) Submit(ctx context.Context, id string) (*models.ProcessingRecord, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// At most one outstanding submission per document. A QUEUED record
	// that already carries a correlation id has been accepted by the
	// engine and must not be submitted again.
	if record.Status != models.StatusQueued || record.CorrelationID != "" {
		return nil, fmt.Errorf("%w: document %s is %s", ErrNotSubmittable, id, record.Status)
	}

	// Fail fast on a missing file; no HTTP call is attempted.
	absPath, err := s.resolver.Resolve(ctx, record.FilePath)
	if err != nil {
		if storage.IsNotFound(err) {
			return s.markSubmissionFailed(ctx, id, fmt.Sprintf("document file not found: %s", record.FilePath), err)
		}
		return s.markSubmissionFailed(ctx, id, fmt.Sprintf("storage resolution failed: %v", err), err)
	}

	language := record.Language
	if language == "" {
		language = s.defaultLanguage
	}

	var resp *ocr.ProcessResponse
	callErr := s.breaker.Call(func() error {
		var err error
		resp, err = s.engine.StartProcessing(ctx, &ocr.ProcessRequest{
			FilePath: absPath,
			Language: language,
		})
		return err
	})
	if callErr != nil {
		cause := "ocr engine call failed"
		if errors.Is(callErr, breaker.ErrOpen) {
			cause = "ocr engine unavailable (circuit open)"
		}
		return s.markSubmissionFailed(ctx, id, fmt.Sprintf("%s: %v", cause, callErr), callErr)
	}

	updated, err := s.repo.Update(ctx, id, func(r *models.ProcessingRecord) error {
		return r.MarkSubmitted(resp.TaskID, resp.Status == "processing")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document submitted to OCR engine",
		logger.String("documentId", id),
		logger.String("correlationId", resp.TaskID),
		logger.String("status", string(updated.Status)),
	)
	return updated, nil
}

// markSubmissionFailed records the failure and returns the cause. Progress
// is left untouched; a fresh submission has none, a resubmission keeps the
// last observed value for diagnostics.
func (s *service) markSubmissionFailed(ctx context.Context, id, message string, cause error) (*models.ProcessingRecord, error) {
	updated, uerr := s.repo.Update(ctx, id, func(r *models.ProcessingRecord) error {
		return r.ApplyFailure(message)
	})
	if uerr != nil {
		s.logger.Error("Failed to record submission failure",
			logger.String("documentId", id),
			logger.Error(uerr),
		)
		return nil, uerr
	}

	s.logger.Error("Document submission failed",
		logger.String("documentId", id),
		logger.String("cause", message),
	)
	return updated, fmt.Errorf("submission failed: %w", cause)
}

func (s *service) Retry(ctx context.Context, id string) (*models.ProcessingRecord, error) {
	_, err := s.repo.Update(ctx, id, func(r *models.ProcessingRecord) error {
		return r.ResetForRetry()
	})
	if err != nil {
		var invalid *models.ErrInvalidTransition
		if errors.As(err, &invalid) {
			return nil, ErrRetryNotAllowed
		}
		return nil, err
	}

	s.logger.Info("Retrying document processing", logger.String("documentId", id))
	return s.Submit(ctx, id)
}

func (s *service) GetStatus(ctx context.Context, id string) (*models.ProcessingRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) HandleCallback(ctx context.Context, cb *Callback) (*CallbackOutcome, error) {
	record, err := s.repo.Get(ctx, cb.DocumentID)
	if err != nil {
		return nil, err
	}

	// A callback for a superseded submission must not touch the record.
	if record.CorrelationID != "" && cb.TaskID != record.CorrelationID {
		return nil, ErrTaskMismatch
	}

	if err := validateCallback(cb); err != nil {
		return nil, err
	}

	token := dedupToken(cb)
	var updated *models.ProcessingRecord
	ran, err := s.idempotency.RunOnce(ctx, token, func() error {
		rec, err := s.applyCallback(ctx, cb)
		if err != nil {
			return err
		}
		updated = rec

		if cb.Status == "completed" {
			return s.dispatchCompletion(ctx, cb)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !ran {
		// Duplicate delivery: answer exactly like the first one, change
		// nothing.
		s.logger.Info("Duplicate callback ignored",
			logger.String("documentId", cb.DocumentID),
			logger.String("taskId", cb.TaskID),
			logger.String("status", cb.Status),
		)
		current, err := s.repo.Get(ctx, cb.DocumentID)
		if err != nil {
			return nil, err
		}
		return &CallbackOutcome{Record: current, Replay: true}, nil
	}

	return &CallbackOutcome{Record: updated}, nil
}

func validateCallback(cb *Callback) error {
	switch cb.Status {
	case "processing":
		if cb.Progress != nil && (*cb.Progress < 0 || *cb.Progress > 100) {
			return &models.ErrInvalidProgress{Value: *cb.Progress}
		}
	case "completed":
		if cb.Result == nil {
			return ErrMissingResult
		}
	case "failed":
		if cb.Error == "" {
			return ErrMissingError
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCallbackStatus, cb.Status)
	}
	return nil
}

func (s *service) applyCallback(ctx context.Context, cb *Callback) (*models.ProcessingRecord, error) {
	return s.repo.Update(ctx, cb.DocumentID, func(r *models.ProcessingRecord) error {
		// First callback for a submission the engine accepted out of band:
		// adopt its task id as the correlation id.
		if r.CorrelationID == "" {
			r.CorrelationID = cb.TaskID
		}
		switch cb.Status {
		case "processing":
			if cb.Progress != nil {
				return r.ApplyProgress(*cb.Progress, cb.CurrentOperation)
			}
			return r.ApplyProgress(valueOrZero(r.Progress), cb.CurrentOperation)
		case "completed":
			// Re-delivery after a crash between persist and token mark:
			// the record is already completed, only the dispatch is owed.
			if r.Status == models.StatusCompleted {
				return nil
			}
			return r.ApplyCompletion(cb.Result)
		case "failed":
			return r.ApplyFailure(cb.Error)
		}
		return fmt.Errorf("%w: %q", ErrUnsupportedCallbackStatus, cb.Status)
	})
}

func (s *service) dispatchCompletion(ctx context.Context, cb *Callback) error {
	// Deterministic event id: a re-emission after a partial failure
	// carries the same id, so the queue and the indexer both collapse it.
	eventID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("completion:"+cb.DocumentID+":"+cb.TaskID)).String()

	err := s.dispatcher.DispatchCompleted(ctx, &queue.CompletionEvent{
		EventID:    eventID,
		DocumentID: cb.DocumentID,
		OccurredAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to dispatch completion event: %w", err)
	}

	s.logger.Info("Completion event dispatched",
		logger.String("documentId", cb.DocumentID),
		logger.String("eventId", eventID),
	)
	return nil
}

// dedupToken derives the idempotency key for a delivery. Progress updates
// include the progress value and operation so distinct updates pass while
// duplicates of the same update are dropped.
func dedupToken(cb *Callback) string {
	parts := []string{cb.DocumentID, cb.TaskID, cb.Status}
	if cb.Status == "processing" {
		progress := ""
		if cb.Progress != nil {
			progress = strconv.Itoa(*cb.Progress)
		}
		parts = append(parts, progress, cb.CurrentOperation)
	}
	return idempotency.TokenFor(parts...)
}

func valueOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
