package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/queue"
)

// Indexer hands completed documents to the external search collaborator.
// The collaborator deduplicates on event id, so at-least-once delivery
// from the queue is acceptable.
type Indexer interface {
	IndexDocument(ctx context.Context, event *queue.CompletionEvent) error
}

type HTTPIndexer struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewHTTPIndexer(baseURL string, timeout time.Duration, log logger.Logger) *HTTPIndexer {
	return &HTTPIndexer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

func (i *HTTPIndexer) IndexDocument(ctx context.Context, event *queue.CompletionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal index request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/index", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}

	i.logger.Info("Document handed to indexer",
		logger.String("documentId", event.DocumentID),
		logger.String("eventId", event.EventID),
	)
	return nil
}
