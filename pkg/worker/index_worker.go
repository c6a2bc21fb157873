package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/indexer"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/queue"
)

// IndexWorker drains the index-dispatch queue and forwards each completion
// event to the search collaborator. Failed hand-offs are retried by asynq
// with backoff; the collaborator dedups on event id.
type IndexWorker struct {
	BaseWorker
	indexer indexer.Indexer
}

func NewIndexWorker(cfg *Config, idx indexer.Indexer, log logger.Logger) (*IndexWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &IndexWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		indexer: idx,
	}

	w.mux.HandleFunc(queue.TaskTypeIndexDocument, w.handleIndexDocument)
	return w, nil
}

func (w *IndexWorker) handleIndexDocument(ctx context.Context, t *asynq.Task) error {
	var event queue.CompletionEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		w.logger.Error("Failed to unmarshal completion event",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		// Malformed payloads never become valid; don't retry.
		return fmt.Errorf("failed to unmarshal completion event: %v: %w", err, asynq.SkipRetry)
	}

	if event.DocumentID == "" {
		return fmt.Errorf("completion event missing document_id: %w", asynq.SkipRetry)
	}

	w.logger.Info("Dispatching document to indexer",
		logger.String("documentId", event.DocumentID),
		logger.String("eventId", event.EventID),
	)

	if err := w.indexer.IndexDocument(ctx, &event); err != nil {
		w.logger.Error("Indexer hand-off failed",
			logger.String("documentId", event.DocumentID),
			logger.Error(err),
		)
		return err
	}
	return nil
}

func (w *IndexWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
