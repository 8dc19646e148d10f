package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerdherd/push-relay/internal/repository"
)

// Runs against a real Redis when REDIS_TEST_URL is set.
func TestRedisSuppressor(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	s := repository.NewRedisSuppressor(client, time.Second)
	token := "device-" + time.Now().Format(time.RFC3339Nano)

	if ok, err := s.IsSuppressed(ctx, token); err != nil || ok {
		t.Fatalf("expected fresh token to be allowed, got %v %v", ok, err)
	}
	if err := s.Suppress(ctx, token); err != nil {
		t.Fatalf("suppress: %v", err)
	}
	if ok, err := s.IsSuppressed(ctx, token); err != nil || !ok {
		t.Fatalf("expected token to be suppressed, got %v %v", ok, err)
	}

	time.Sleep(1100 * time.Millisecond)
	if ok, _ := s.IsSuppressed(ctx, token); ok {
		t.Fatal("expected suppression to expire")
	}
}
