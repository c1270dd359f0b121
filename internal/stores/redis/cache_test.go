package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReplayCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c := NewReplayCache(addr, time.Minute)
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	key := "cs_test_" + uuid.NewString() + ":succeeded"
	seen, err := c.Seen(ctx, key)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if seen {
		t.Fatalf("Expected fresh key to be unseen")
	}
	if err := c.Mark(ctx, key); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if seen, err = c.Seen(ctx, key); err != nil || !seen {
		t.Fatalf("Expected key to be seen, got %v, %v", seen, err)
	}
}

func TestKeyPrefix(t *testing.T) {
	c := &ReplayCache{}
	if got := c.key("abc"); got != "webhook:abc" {
		t.Fatalf("Expected webhook:abc, got %s", got)
	}
}
