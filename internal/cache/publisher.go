// Package cache publishes invalidation events for the external caching
// layer. The core never reads the cache itself; it only announces that a
// task changed so subscribers can drop stale keys.
package cache

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const TaskChangedChannel = "task:changed"

type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// TaskChanged announces a task mutation. Failures are logged, never
// propagated; invalidation is advisory.
func (p *Publisher) TaskChanged(ctx context.Context, taskID uuid.UUID) {
	if p == nil || p.rdb == nil {
		return
	}
	if err := p.rdb.Publish(ctx, TaskChangedChannel, taskID.String()).Err(); err != nil {
		log.Printf("cache: publish task change %s failed: %v", taskID, err)
	}
}
