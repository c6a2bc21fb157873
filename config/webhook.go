package config

import (
	"os"
	"sync"
	"time"
)

var (
	webhookOnce   sync.Once
	webhookConfig *WebhookConfig
)

// WebhookConfig holds the shared-secret settings for inbound OCR callbacks.
type WebhookConfig struct {
	// Secret signs callback bodies; the OCR engine holds the same value.
	Secret string
	// MaxBodyBytes caps inbound callback payloads.
	MaxBodyBytes int64
	// IdempotencyTTL is how long a delivery token blocks duplicates.
	IdempotencyTTL time.Duration
}

func GetWebhookConfig() *WebhookConfig {
	webhookOnce.Do(func() {
		loadDotenv()

		webhookConfig = &WebhookConfig{
			Secret:         os.Getenv("WEBHOOK_SECRET"),
			MaxBodyBytes:   int64(getenvInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
			IdempotencyTTL: getenvDuration("WEBHOOK_IDEMPOTENCY_TTL", 24*time.Hour),
		}
	})
	return webhookConfig
}
