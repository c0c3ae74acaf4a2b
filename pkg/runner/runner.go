package runner

import (
	"sync"
	"sync/atomic"
)

// Signal is the stop flag shared by every worker of a session. A graceful
// stop lets in-flight work finish; a hard stop additionally asks writers to
// abort mid-transfer.
type Signal struct {
	stopped atomic.Bool
	hard    atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewSignal creates an unset signal
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Stop requests a graceful stop.
func (s *Signal) Stop() {
	s.stopped.Store(true)
	s.once.Do(func() { close(s.done) })
}

// HardStop requests an immediate stop, aborting downloads mid-write.
func (s *Signal) HardStop() {
	s.hard.Store(true)
	s.Stop()
}

// Stopped reports whether any stop was requested.
func (s *Signal) Stopped() bool {
	return s.stopped.Load()
}

// HardStopped reports whether a hard stop was requested.
func (s *Signal) HardStopped() bool {
	return s.hard.Load()
}

// Done is closed once Stop or HardStop has been called.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Base is embedded by every cancelable worker. Operations call Continue at
// their start and return without doing anything when it reports false.
type Base struct {
	Signal *Signal
}

// Continue reports whether work may proceed. A nil signal never stops.
func (b Base) Continue() bool {
	return b.Signal == nil || !b.Signal.Stopped()
}

// HardStopped reports whether writers should abort immediately.
func (b Base) HardStopped() bool {
	return b.Signal != nil && b.Signal.HardStopped()
}
