package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/private-doc-vault/docvault-backend-sub002/internal/models"
)

const updateRetries = 5

// RedisRepository stores records as JSON blobs and uses WATCH-based
// optimistic transactions so concurrent updates of the same document are
// serialized across application instances.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "processing_record"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

func (r *RedisRepository) Create(ctx context.Context, record *models.ProcessingRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.key(record.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	if !ok {
		return ErrRecordExists
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*models.ProcessingRecord, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	var rec models.ProcessingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

func (r *RedisRepository) Update(ctx context.Context, id string, mutate func(*models.ProcessingRecord) error) (*models.ProcessingRecord, error) {
	key := r.key(id)
	var updated *models.ProcessingRecord

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load record: %w", err)
		}

		var rec models.ProcessingRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		if err := mutate(&rec); err != nil {
			return err
		}

		out, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err == nil {
			updated = &rec
		}
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := r.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("record %s update contention: retries exhausted", id)
}
