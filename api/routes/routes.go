package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/private-doc-vault/docvault-backend-sub002/api/handlers"
	"github.com/private-doc-vault/docvault-backend-sub002/api/middleware"
)

// WebhookOptions configures the callback trust boundary.
type WebhookOptions struct {
	Secret       string
	MaxBodyBytes int64
}

// SetupRoutes wires the document-processing API and the OCR callback
// webhook. The webhook sits outside the documents group because its caller
// is the OCR engine, not an end user.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, webhook WebhookOptions) {
	r.Use(middleware.CORS())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/webhooks/ocr/callback",
		middleware.VerifySignature(webhook.Secret, webhook.MaxBodyBytes),
		h.Webhook.HandleOCRCallback,
	)

	docs := r.Group("/documents")
	{
		docs.POST("", h.Document.RegisterDocument)
		docs.POST("/:id/process", h.Document.ProcessDocument)
		docs.POST("/:id/retry-processing", h.Document.RetryProcessing)
		docs.GET("/:id/processing-status", h.Document.GetProcessingStatus)
	}
}
