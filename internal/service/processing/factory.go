package processing

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	cfg "github.com/private-doc-vault/docvault-backend-sub002/config"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/ocr"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/repository"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/breaker"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/idempotency"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/queue"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/storage"
)

// GetService wires the orchestration core from the environment config.
func GetService(log logger.Logger) (Service, error) {
	storageConfig := cfg.GetStorageConfig()
	resolver, err := storage.NewResolver(storage.StorageType(storageConfig.Type), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage resolver: %w", err)
	}

	ocrConfig := cfg.GetOCRConfig()
	cb := breaker.New(breaker.Config{
		Name:             "ocr-engine",
		FailureThreshold: ocrConfig.FailureThreshold,
		ResetTimeout:     ocrConfig.ResetTimeout,
	}, log)

	var (
		repo repository.RecordRepository
		idem *idempotency.Service
	)
	webhookConfig := cfg.GetWebhookConfig()
	switch backend := cfg.GetServerConfig().StateBackend; backend {
	case "memory":
		repo = repository.NewMemoryRepository()
		idem = idempotency.NewService(idempotency.NewMemoryStore(), webhookConfig.IdempotencyTTL)
	case "redis":
		redisConfig := cfg.GetRedisConfig()
		client := redis.NewClient(&redis.Options{
			Addr:     redisConfig.Addr,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})
		repo = repository.NewRedisRepository(client, "")
		idem = idempotency.NewService(idempotency.NewRedisStore(client, ""), webhookConfig.IdempotencyTTL)
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", backend)
	}

	return NewService(
		repo,
		resolver,
		ocr.GetClient(log),
		cb,
		idem,
		queue.GetDispatcher(),
		log,
		&ServiceConfig{DefaultLanguage: ocrConfig.DefaultLanguage},
	), nil
}
