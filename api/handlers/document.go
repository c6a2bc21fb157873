package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/repository"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/service/processing"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

type DocumentHandler struct {
	service processing.Service
	logger  logger.Logger
}

func NewDocumentHandler(service processing.Service, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{service: service, logger: log}
}

type registerRequest struct {
	ID       string `json:"id" binding:"required"`
	FilePath string `json:"file_path" binding:"required"`
	Language string `json:"language"`
}

// RegisterDocument is the boundary with the upload path: it records a
// document as QUEUED so processing can be started and tracked.
func (h *DocumentHandler) RegisterDocument(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and file_path are required"})
		return
	}

	rec, err := h.service.Register(c.Request.Context(), req.ID, req.FilePath, req.Language)
	if err != nil {
		if errors.Is(err, repository.ErrRecordExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "document already registered"})
			return
		}
		h.handleError(c, "Failed to register document", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"document_id": rec.ID,
		"status":      string(rec.Status),
	})
}

// ProcessDocument submits a registered document to the OCR engine.
func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.service.Submit(c.Request.Context(), id)
	if err != nil {
		h.respondSubmissionError(c, rec, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"document_id":    rec.ID,
		"status":         string(rec.Status),
		"correlation_id": rec.CorrelationID,
	})
}

// RetryProcessing re-opens a failed document and submits it again.
func (h *DocumentHandler) RetryProcessing(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.service.Retry(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, processing.ErrRetryNotAllowed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "retry is only allowed for failed documents"})
			return
		}
		h.respondSubmissionError(c, rec, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"document_id":    rec.ID,
		"status":         string(rec.Status),
		"correlation_id": rec.CorrelationID,
	})
}

// GetProcessingStatus is a read-only projection of the record.
func (h *DocumentHandler) GetProcessingStatus(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.service.GetStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		h.handleError(c, "Failed to get processing status", err)
		return
	}

	resp := gin.H{
		"document_id": rec.ID,
		"status":      string(rec.Status),
		"created_at":  rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.Progress != nil {
		resp["progress"] = *rec.Progress
	}
	if rec.CurrentOperation != "" {
		resp["current_operation"] = rec.CurrentOperation
	}
	if rec.ProcessingError != "" {
		resp["processing_error"] = rec.ProcessingError
	}
	if rec.CorrelationID != "" {
		resp["correlation_id"] = rec.CorrelationID
	}
	if rec.Result != nil {
		resp["result"] = rec.Result
	}
	c.JSON(http.StatusOK, resp)
}

// respondSubmissionError maps submission failures: the document is marked
// FAILED (when it exists) and the upstream cause decides the status code.
func (h *DocumentHandler) respondSubmissionError(c *gin.Context, rec *models.ProcessingRecord, err error) {
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, processing.ErrNotSubmittable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case rec != nil:
		// Submission attempted and failed; the record reflects it.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":       rec.ProcessingError,
			"document_id": rec.ID,
			"status":      string(rec.Status),
		})
	default:
		h.handleError(c, "Failed to submit document", err)
	}
}

func (h *DocumentHandler) handleError(c *gin.Context, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}
