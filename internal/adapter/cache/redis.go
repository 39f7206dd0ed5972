package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/observability"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

const redisKeyPrefix = "intakeqa:decision:"

// Redis is a DecisionCache backed by Redis, for deployments with more than
// one replica behind the webhook. Expiry is delegated to Redis TTLs, so no
// sweeper is needed.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing go-redis client.
func NewRedis(client *redis.Client) *Redis { return &Redis{client: client} }

// Get returns the cached decision for activityID, if present and unexpired.
func (r *Redis) Get(ctx domain.Context, activityID string) (domain.Decision, bool, error) {
	b, err := r.client.Get(ctx, redisKeyPrefix+activityID).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.DedupCacheOps.WithLabelValues("miss").Inc()
		return domain.Decision{}, false, nil
	}
	if err != nil {
		return domain.Decision{}, false, fmt.Errorf("op=cache.redis.get: %w", err)
	}
	var d domain.Decision
	if err := json.Unmarshal(b, &d); err != nil {
		// A corrupt entry behaves like a miss; the pipeline recomputes.
		observability.DedupCacheOps.WithLabelValues("miss").Inc()
		return domain.Decision{}, false, nil
	}
	observability.DedupCacheOps.WithLabelValues("hit").Inc()
	return d, true, nil
}

// Set stores a decision under the activity id with the given TTL.
func (r *Redis) Set(ctx domain.Context, activityID string, d domain.Decision, ttl time.Duration) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("op=cache.redis.set: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+activityID, b, ttl).Err(); err != nil {
		return fmt.Errorf("op=cache.redis.set: %w", err)
	}
	return nil
}
