package lease

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "pass", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "pass", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("expected ErrLeaseHeld, got %v", err)
	}

	other, err := l.Acquire(ctx, "other", time.Minute)
	if err != nil {
		t.Fatalf("independent key: %v", err)
	}
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "pass", time.Minute)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again()
}

func TestLocalCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal().Acquire(ctx, "pass", time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRedisExclusive(t *testing.T) {
	addr := os.Getenv("INDEXER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INDEXER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer r.Close()

	key := "test-" + time.Now().Format("150405.000000000")
	release, err := r.Acquire(ctx, key, 5*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := r.Acquire(ctx, key, 5*time.Second); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("expected ErrLeaseHeld, got %v", err)
	}
	release()

	again, err := r.Acquire(ctx, key, 5*time.Second)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again()
}
