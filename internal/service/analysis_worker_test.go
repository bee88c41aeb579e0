package service

import (
	"context"
	"errors"
	"study_assistant_backend/internal/util"
	"sync"
	"testing"
	"time"
)

func TestMemoryJobQueueFull(t *testing.T) {
	q := NewMemoryJobQueue(1)
	if err := q.Enqueue(context.Background(), "a"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(context.Background(), "b"); !errors.Is(err, util.ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	id, err := q.Dequeue(context.Background())
	if err != nil || id != "a" {
		t.Fatalf("dequeue = %q, %v", id, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatalf("dequeue on a cancelled context should fail")
	}
}

func TestWorkerProcessesJobs(t *testing.T) {
	q := NewMemoryJobQueue(16)

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 16)
	run := func(ctx context.Context, id string) error {
		if id == "boom" {
			panic("job exploded")
		}
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		done <- struct{}{}
		if id == "bad" {
			return errors.New("failed")
		}
		return nil
	}

	w := NewAnalysisWorker(q, run, 2)
	w.Start(context.Background())
	defer w.Stop()

	for _, id := range []string{"j1", "boom", "bad", "j2"} {
		if err := q.Enqueue(context.Background(), id); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for jobs")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for _, id := range []string{"j1", "bad", "j2"} {
		if !seen[id] {
			t.Fatalf("job %s was not processed", id)
		}
	}
}
