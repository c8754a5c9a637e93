package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestFixedPoolRunsEveryWorker(t *testing.T) {
	pool := NewFixedPool(4)
	var count int32

	err := pool.Run(context.Background(), 20, func(ctx context.Context, worker int) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 20 {
		t.Fatalf("count = %d, want 20", count)
	}
}

func TestFixedPoolPropagatesError(t *testing.T) {
	pool := NewFixedPool(2)
	wantErr := errors.New("boom")

	err := pool.Run(context.Background(), 5, func(ctx context.Context, worker int) error {
		if worker == 3 {
			return wantErr
		}
		return nil
	})
	if err != wantErr {
		t.Fatalf("Run = %v, want %v", err, wantErr)
	}
}

func TestFixedPoolUnboundedConcurrency(t *testing.T) {
	pool := NewFixedPool(0)
	var count int32

	err := pool.Run(context.Background(), 50, func(ctx context.Context, worker int) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 50 {
		t.Fatalf("count = %d, want 50", count)
	}
}

func TestFixedPoolZeroWorkers(t *testing.T) {
	pool := NewFixedPool(4)
	if err := pool.Run(context.Background(), 0, func(ctx context.Context, worker int) error {
		t.Fatal("fn should never be called for n == 0")
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
