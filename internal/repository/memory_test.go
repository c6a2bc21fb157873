package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
)

func TestMemoryRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	rec := &models.ProcessingRecord{ID: "doc-1", FilePath: "a.pdf", Status: models.StatusQueued}
	require.NoError(t, repo.Create(ctx, rec))
	require.ErrorIs(t, repo.Create(ctx, rec), ErrRecordExists)

	got, err := repo.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.Get(ctx, "doc-2")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryRepositoryUpdateAborts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, &models.ProcessingRecord{ID: "doc-1", Status: models.StatusQueued}))

	boom := errors.New("mutation failed")
	_, err := repo.Update(ctx, "doc-1", func(r *models.ProcessingRecord) error {
		r.Status = models.StatusFailed
		return boom
	})
	require.ErrorIs(t, err, boom)

	// A failed mutation must not leak partial changes.
	got, err := repo.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, got.Status)
}

func TestMemoryRepositoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, &models.ProcessingRecord{ID: "doc-1", Status: models.StatusQueued}))

	got, _ := repo.Get(ctx, "doc-1")
	got.Status = models.StatusFailed

	again, _ := repo.Get(ctx, "doc-1")
	assert.Equal(t, models.StatusQueued, again.Status)
}

func TestMemoryRepositoryConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, &models.ProcessingRecord{ID: "doc-1", Status: models.StatusProcessing}))

	// Each update increments progress by one; serialization means no lost
	// updates.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "doc-1", func(r *models.ProcessingRecord) error {
				next := 1
				if r.Progress != nil {
					next = *r.Progress + 1
				}
				r.Progress = &next
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, got.Progress)
	assert.Equal(t, 100, *got.Progress)
}
