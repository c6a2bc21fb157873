package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/private-doc-vault/docvault-backend-sub002/api/middleware"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/repository"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/service/processing"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

// WebhookHandler receives asynchronous callbacks from the OCR engine.
// Signature verification happens in middleware, over the raw body; by the
// time this handler runs the delivery is authenticated.
type WebhookHandler struct {
	service processing.Service
	logger  logger.Logger
}

func NewWebhookHandler(service processing.Service, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: log}
}

type ocrCallbackPayload struct {
	TaskID           string          `json:"task_id"`
	DocumentID       string          `json:"document_id"`
	Status           string          `json:"status"`
	Timestamp        string          `json:"timestamp"`
	Progress         *int            `json:"progress"`
	CurrentOperation string          `json:"current_operation"`
	Result           *callbackResult `json:"result"`
	Error            string          `json:"error"`
}

// callbackResult uses pointers so "absent" and "zero value" stay apart;
// a completed callback must carry at least text and confidence.
type callbackResult struct {
	Text       *string                `json:"text"`
	Confidence *float64               `json:"confidence"`
	Language   string                 `json:"language"`
	Metadata   map[string]interface{} `json:"metadata"`
	Category   map[string]interface{} `json:"category"`
}

// HandleOCRCallback drives the callback pipeline: parse, validate, then
// hand to the service for correlation, dedup, and state application.
func (h *WebhookHandler) HandleOCRCallback(c *gin.Context) {
	raw, ok := c.Get(middleware.RawBodyKey)
	if !ok {
		// Route misconfiguration; the signature middleware must run first.
		h.logger.Error("Webhook raw body missing from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var payload ocrCallbackPayload
	if err := json.Unmarshal(raw.([]byte), &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed JSON payload"})
		return
	}

	if payload.TaskID == "" || payload.DocumentID == "" || payload.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required callback fields (task_id, document_id, status)"})
		return
	}

	cb := &processing.Callback{
		TaskID:           payload.TaskID,
		DocumentID:       payload.DocumentID,
		Status:           payload.Status,
		Progress:         payload.Progress,
		CurrentOperation: payload.CurrentOperation,
		Error:            payload.Error,
	}

	if payload.Result != nil {
		if payload.Result.Text == nil || payload.Result.Confidence == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "result must include text and confidence"})
			return
		}
		cb.Result = &models.OCRResult{
			Text:       *payload.Result.Text,
			Confidence: *payload.Result.Confidence,
			Language:   payload.Result.Language,
			Metadata:   payload.Result.Metadata,
			Category:   payload.Result.Category,
		}
	}

	outcome, err := h.service.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		h.respondCallbackError(c, cb, err)
		return
	}

	message := "callback processed"
	if outcome.Replay {
		message = "callback already processed"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     message,
		"document_id": outcome.Record.ID,
		"status":      string(outcome.Record.Status),
	})
}

func (h *WebhookHandler) respondCallbackError(c *gin.Context, cb *processing.Callback, err error) {
	var (
		invalidProgress   *models.ErrInvalidProgress
		invalidTransition *models.ErrInvalidTransition
	)

	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, processing.ErrTaskMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "task mismatch"})
	case errors.As(err, &invalidProgress),
		errors.As(err, &invalidTransition),
		errors.Is(err, processing.ErrMissingResult),
		errors.Is(err, processing.ErrMissingError),
		errors.Is(err, processing.ErrUnsupportedCallbackStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Callback processing failed",
			logger.String("documentId", cb.DocumentID),
			logger.String("taskId", cb.TaskID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process callback"})
	}
}
