package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	if q.Len() != 5 {
		t.Fatalf("Expected 5 items, got %d", q.Len())
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		v, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v != i {
			t.Fatalf("Expected %d, got %d", i, v)
		}
	}
}

func TestQueueGetCanceled(t *testing.T) {
	q := New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestQueueManyConsumers(t *testing.T) {
	q := New[int]()
	const n = 200
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := q.Get(ctx)
				if err != nil || v < 0 {
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < n; i++ {
		q.Put(i)
	}
	for w := 0; w < 4; w++ {
		q.Put(-1)
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("Expected %d distinct items, got %d", n, len(seen))
	}
}

func TestMessageStrings(t *testing.T) {
	if got := HoldMessage[int64]().String(); got != "HOLD" {
		t.Fatalf("Expected HOLD, got %q", got)
	}
	if got := Item[int64](7).String(); got != "7" {
		t.Fatalf("Expected 7, got %q", got)
	}
	if got := Resume(3, 9).Payload.String(); got != "(RESUME_POST, 3, 9)" {
		t.Fatalf("Unexpected resume string %q", got)
	}
}
