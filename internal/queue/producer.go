package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Task types understood by the worker.
const (
	TaskOrphanSweep    = "orphan_sweep"
	TaskSessionCleanup = "session_cleanup"
	TaskPurgeImages    = "purge_images"
)

// Enqueuer adds a task to the job stream.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, fields map[string]any) error
}

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, taskType string, fields map[string]any) error {
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	values["type"] = taskType

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
