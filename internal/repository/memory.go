package repository

import (
	"context"
	"sync"
	"time"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
)

// MemoryRepository is a single-process RecordRepository. A single mutex
// covers the map and serializes mutations; contention is per service
// instance, which matches the in-memory deployment mode.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*models.ProcessingRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.ProcessingRecord)}
}

func (m *MemoryRepository) Create(_ context.Context, record *models.ProcessingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; ok {
		return ErrRecordExists
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	clone := *record
	m.records[record.ID] = &clone
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*models.ProcessingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *MemoryRepository) Update(_ context.Context, id string, mutate func(*models.ProcessingRecord) error) (*models.ProcessingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}

	// Mutate a copy so a failed mutation leaves the stored record intact.
	working := *rec
	if err := mutate(&working); err != nil {
		return nil, err
	}
	m.records[id] = &working

	clone := working
	return &clone, nil
}
