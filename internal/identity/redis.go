package identity

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBindings stores one hash per client, field = session id, value =
// player id. Every write refreshes the hash's TTL so idle clients expire.
type RedisBindings struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisBindings(client *redis.Client, prefix string, ttl time.Duration) *RedisBindings {
	return &RedisBindings{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBindings) key(clientID string) string {
	return b.prefix + "bindings:" + clientID
}

func (b *RedisBindings) Get(ctx context.Context, clientID, sessionID string) (string, bool, error) {
	id, err := b.client.HGet(ctx, b.key(clientID), sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (b *RedisBindings) Set(ctx context.Context, clientID, sessionID, playerID string) error {
	key := b.key(clientID)
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, sessionID, playerID)
		if b.ttl > 0 {
			pipe.Expire(ctx, key, b.ttl)
		}
		return nil
	})
	return err
}

func (b *RedisBindings) Clear(ctx context.Context, clientID, sessionID string) error {
	return b.client.HDel(ctx, b.key(clientID), sessionID).Err()
}
