package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	cfg "github.com/private-doc-vault/docvault-backend-sub002/config"
)

// TaskTypeIndexDocument is the queue task carrying a "document ready to
// index" signal to the search collaborator.
const TaskTypeIndexDocument = "index:document"

// CompletionEvent is emitted when a document reaches COMPLETED. The event
// id doubles as the queue task id, so even a double emission collapses to
// one queued task.
type CompletionEvent struct {
	EventID    string    `json:"event_id"`
	DocumentID string    `json:"document_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Dispatcher publishes completion events for downstream indexing. Delivery
// downstream is at-least-once; the idempotency gate at the emission site
// bounds how often an event is published at all.
type Dispatcher interface {
	DispatchCompleted(ctx context.Context, event *CompletionEvent) error
}

// AsynqDispatcher carries events on an asynq/Redis queue.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

// GetDispatcher builds a dispatcher against the configured Redis instance.
func GetDispatcher() *AsynqDispatcher {
	redisConfig := cfg.GetRedisConfig()
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})
	return NewAsynqDispatcher(client)
}

func (d *AsynqDispatcher) DispatchCompleted(ctx context.Context, event *CompletionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(event.EventID),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.Queue("default"),
	}

	t := asynq.NewTask(TaskTypeIndexDocument, payload, opts...)
	if _, err := d.client.EnqueueContext(ctx, t); err != nil {
		// A duplicate task id means the event is already queued, which is
		// exactly the effect we wanted.
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue completion event: %w", err)
	}
	return nil
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}
