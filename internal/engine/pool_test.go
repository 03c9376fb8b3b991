package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskPool_BasicExecution(t *testing.T) {
	pool := NewTaskPool(2)
	defer pool.Shutdown()

	var ran int64
	err := pool.Submit(context.Background(), func(ctx context.Context) error {
		atomic.AddInt64(&ran, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	pool.Wait()

	if atomic.LoadInt64(&ran) != 1 {
		t.Error("work did not execute")
	}

	m := pool.Metrics()
	if m.Completed != 1 {
		t.Errorf("expected 1 completed, got %d", m.Completed)
	}
}

func TestTaskPool_ConcurrencyLimit(t *testing.T) {
	poolSize := 3
	pool := NewTaskPool(poolSize)
	defer pool.Shutdown()

	var current int64

	taskCount := 10
	for i := 0; i < taskCount; i++ {
		err := pool.Submit(context.Background(), func(ctx context.Context) error {
			atomic.AddInt64(&current, 1)
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected submit error: %v", err)
		}
	}

	pool.Wait()

	m := pool.Metrics()
	if m.HighWatermark > int64(poolSize) {
		t.Errorf("high watermark %d exceeded pool size %d", m.HighWatermark, poolSize)
	}
	if m.HighWatermark == 0 {
		t.Error("no concurrent execution detected")
	}
	if m.Completed != int64(taskCount) {
		t.Errorf("expected %d completed, got %d", taskCount, m.Completed)
	}
}

func TestTaskPool_Backpressure(t *testing.T) {
	pool := NewTaskPool(1)
	defer pool.Shutdown()

	block := make(chan struct{})
	err := pool.Submit(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	// The pool is full; a second submit must block until cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = pool.Submit(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded during backpressure, got %v", err)
	}

	close(block)
	pool.Wait()
}

func TestTaskPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewTaskPool(1)
	pool.Shutdown()

	err := pool.Submit(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrPoolShutdown) {
		t.Errorf("expected ErrPoolShutdown, got %v", err)
	}
}

func TestTaskPool_PanicRecovered(t *testing.T) {
	pool := NewTaskPool(1)
	defer pool.Shutdown()

	err := pool.Submit(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	pool.Wait()

	m := pool.Metrics()
	if m.Panics != 1 {
		t.Errorf("expected 1 panic recorded, got %d", m.Panics)
	}
	if m.Failed != 1 {
		t.Errorf("expected 1 failure recorded, got %d", m.Failed)
	}
}

func TestTaskPool_FailedTaskCounted(t *testing.T) {
	pool := NewTaskPool(1)
	defer pool.Shutdown()

	err := pool.Submit(context.Background(), func(ctx context.Context) error {
		return errors.New("task error")
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	pool.Wait()

	m := pool.Metrics()
	if m.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", m.Failed)
	}
	if m.Completed != 0 {
		t.Errorf("expected 0 completed, got %d", m.Completed)
	}
}
