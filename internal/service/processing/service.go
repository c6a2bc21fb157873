package processing

import (
	"context"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
)

// Callback is a parsed, signature-verified OCR engine callback. The HTTP
// layer owns raw-body verification and JSON decoding; everything after
// that lives here.
type Callback struct {
	TaskID           string
	DocumentID       string
	Status           string
	Progress         *int
	CurrentOperation string
	Result           *models.OCRResult
	Error            string
}

// CallbackOutcome reports what a callback application did.
type CallbackOutcome struct {
	Record *models.ProcessingRecord
	// Replay is true when the delivery was a duplicate and no state was
	// touched.
	Replay bool
}

// Service orchestrates document processing: submission to the OCR engine,
// explicit retry, and application of callback-driven state transitions.
type Service interface {
	// Register creates a QUEUED processing record. It is the boundary
	// with the upload path, which owns document creation.
	Register(ctx context.Context, id, filePath, language string) (*models.ProcessingRecord, error)

	// Submit resolves the document file and starts processing on the OCR
	// engine. Any failure marks the record FAILED with a descriptive
	// error; the returned record reflects the final state either way.
	Submit(ctx context.Context, id string) (*models.ProcessingRecord, error)

	// Retry re-opens a FAILED document and submits it again.
	Retry(ctx context.Context, id string) (*models.ProcessingRecord, error)

	// GetStatus is a read-only projection; no side effects, no network.
	GetStatus(ctx context.Context, id string) (*models.ProcessingRecord, error)

	// HandleCallback applies a verified callback: correlation check,
	// idempotency gate, state transition, completion dispatch.
	HandleCallback(ctx context.Context, cb *Callback) (*CallbackOutcome, error)
}
