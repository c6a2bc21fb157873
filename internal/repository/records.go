package repository

import (
	"context"
	"errors"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
)

var (
	// ErrRecordNotFound means no processing record exists for the id.
	ErrRecordNotFound = errors.New("processing record not found")
	// ErrRecordExists means a record with the id is already registered.
	ErrRecordExists = errors.New("processing record already exists")
)

// RecordRepository persists processing records. Update runs the mutation
// with per-document serialization: two concurrent updates for the same
// document never interleave, so a progress/status pair can't tear.
type RecordRepository interface {
	Create(ctx context.Context, record *models.ProcessingRecord) error
	Get(ctx context.Context, id string) (*models.ProcessingRecord, error)
	// Update loads the record, applies mutate, and persists the result
	// atomically with respect to other updates of the same id. An error
	// from mutate aborts the update and is returned unchanged.
	Update(ctx context.Context, id string, mutate func(*models.ProcessingRecord) error) (*models.ProcessingRecord, error)
}
