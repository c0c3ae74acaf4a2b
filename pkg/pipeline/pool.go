package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// pool runs tasks on goroutines, never more than size at once, and keeps
// count of the tasks still in flight.
type pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	active atomic.Int64
	log    logrus.FieldLogger
}

func newPool(size int, log logrus.FieldLogger) *pool {
	if size < 1 {
		size = 1
	}
	return &pool{sem: semaphore.NewWeighted(int64(size)), log: log}
}

// submit blocks until a slot is free, then runs fn on its own goroutine.
func (p *pool) submit(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire worker slot: %w", err)
	}
	p.active.Add(1)
	p.wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.WithField("stack", string(debug.Stack())).Errorf("Worker panicked: %v", r)
			}
			p.active.Add(-1)
			p.sem.Release(1)
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// wait blocks until every submitted task has returned.
func (p *pool) wait() {
	p.wg.Wait()
}

func (p *pool) inFlight() int64 {
	return p.active.Load()
}
