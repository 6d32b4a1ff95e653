package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChannel backs the handoff with Redis so the start page and the attempt
// page can land on different engine instances. SET NX gives write-once,
// GETDEL gives read-once, and the TTL expires abandoned payloads.
type RedisChannel struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisChannel(client *redis.Client, ttl time.Duration) *RedisChannel {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisChannel{client: client, ttl: ttl}
}

func (r *RedisChannel) Put(ctx context.Context, key string, p *Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal handoff payload: %w", err)
	}

	ok, err := r.client.SetNX(ctx, key, data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("handoff put: %w", err)
	}
	if !ok {
		return ErrKeyExists
	}
	return nil
}

func (r *RedisChannel) Take(ctx context.Context, key string) (*Payload, error) {
	data, err := r.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("handoff take: %w", err)
	}

	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal handoff payload: %w", err)
	}
	return &p, nil
}
