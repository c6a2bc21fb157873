package handlers

import (
	"github.com/private-doc-vault/docvault-backend-sub002/internal/service/processing"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
	Webhook  *WebhookHandler
}

func NewHandlers(
	processingService processing.Service,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(processingService, logger),
		Webhook:  NewWebhookHandler(processingService, logger),
	}
}
