package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	cfg "github.com/private-doc-vault/docvault-backend-sub002/config"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

// Client starts processing jobs on the external OCR engine. The engine
// works asynchronously and reports progress and results back over the
// callback webhook.
type Client interface {
	StartProcessing(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error)
}

// ProcessRequest carries the absolute path on the shared volume, never the
// file content; the engine reads the document itself.
type ProcessRequest struct {
	FilePath string `json:"file_path"`
	Language string `json:"language"`
}

// ProcessResponse is the engine's acceptance of a job.
type ProcessResponse struct {
	TaskID string `json:"task_id"`
	// Status is "queued" or "processing" depending on engine load.
	Status string `json:"status"`
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

// GetClient builds a client from the environment config.
func GetClient(log logger.Logger) *HTTPClient {
	ocrConfig := cfg.GetOCRConfig()
	return NewHTTPClient(ocrConfig.BaseURL, ocrConfig.RequestTimeout, log)
}

func (c *HTTPClient) StartProcessing(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal process request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr/process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build process request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ocr engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("OCR engine rejected processing request",
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(snippet)),
		)
		return nil, fmt.Errorf("ocr engine returned status %d", resp.StatusCode)
	}

	var out ProcessResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode ocr engine response: %w", err)
	}
	if out.TaskID == "" {
		return nil, fmt.Errorf("ocr engine response missing task_id")
	}
	return &out, nil
}
