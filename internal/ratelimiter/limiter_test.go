package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/nerdherd/push-relay/internal/ratelimiter"
)

func TestLimiter_BurstThenBlocks(t *testing.T) {
	l := ratelimiter.New(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	// The bucket is empty; a deadline shorter than the refill interval fails.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(short); err == nil {
		t.Fatal("expected the third send within 50ms to be refused")
	}
}

func TestLimiter_DisabledNeverBlocks(t *testing.T) {
	l := ratelimiter.New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	for i := 0; i < 1000; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}
