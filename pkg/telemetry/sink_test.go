package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Consume(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestSinkNeverBlocks(t *testing.T) {
	s := NewSink(2)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Info("message %d", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Producer blocked on a full sink")
	}
	if s.Dropped() != 8 {
		t.Fatalf("Expected 8 dropped messages, got %d", s.Dropped())
	}
}

func TestSinkRunDrains(t *testing.T) {
	s := NewSink(10)
	s.Debug("one")
	s.Error("two %s", "!")

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx, logrus.New(), rec)

	if len(rec.msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(rec.msgs))
	}
	if rec.msgs[1].Level != Error || rec.msgs[1].Text != "two !" {
		t.Fatalf("Unexpected message %+v", rec.msgs[1])
	}
}

func TestNilSinkIsSafe(t *testing.T) {
	var s *Sink
	s.Warning("ignored")
}
