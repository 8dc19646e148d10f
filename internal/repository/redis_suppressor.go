package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const suppressionPrefix = "push:suppressed:"

type redisSuppressor struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSuppressor stores suppressed tokens as expiring Redis keys.
// Tokens are hashed so raw device tokens never land in Redis.
func NewRedisSuppressor(client *redis.Client, ttl time.Duration) Suppressor {
	return &redisSuppressor{client: client, ttl: ttl}
}

func suppressionKey(deviceToken string) string {
	sum := sha256.Sum256([]byte(deviceToken))
	return suppressionPrefix + hex.EncodeToString(sum[:])
}

func (s *redisSuppressor) Suppress(ctx context.Context, deviceToken string) error {
	if err := s.client.Set(ctx, suppressionKey(deviceToken), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("suppress token: %w", err)
	}
	return nil
}

func (s *redisSuppressor) IsSuppressed(ctx context.Context, deviceToken string) (bool, error) {
	err := s.client.Get(ctx, suppressionKey(deviceToken)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check suppression: %w", err)
	}
	return true, nil
}
