package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a user-facing message
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "debug"
	}
}

// Message is one leveled line for the UI or the log
type Message struct {
	Level Level     `bson:"level" json:"level"`
	Text  string    `bson:"text" json:"text"`
	Time  time.Time `bson:"time" json:"time"`
}

// Consumer receives messages drained from a Sink
type Consumer interface {
	Consume(ctx context.Context, msg Message) error
}

// ConsumerFunc adapts a function to a Consumer
type ConsumerFunc func(ctx context.Context, msg Message) error

func (f ConsumerFunc) Consume(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Sink is a fire-and-forget message channel. Producers never block: when the
// buffer is full the message is dropped and counted.
type Sink struct {
	ch      chan Message
	dropped atomic.Int64
}

// NewSink creates a sink buffering up to size messages
func NewSink(size int) *Sink {
	if size < 1 {
		size = 1
	}
	return &Sink{ch: make(chan Message, size)}
}

func (s *Sink) send(level Level, format string, args ...interface{}) {
	if s == nil {
		return
	}
	msg := Message{Level: level, Text: fmt.Sprintf(format, args...), Time: time.Now()}
	select {
	case s.ch <- msg:
	default:
		s.dropped.Add(1)
	}
}

func (s *Sink) Debug(format string, args ...interface{})   { s.send(Debug, format, args...) }
func (s *Sink) Info(format string, args ...interface{})    { s.send(Info, format, args...) }
func (s *Sink) Warning(format string, args ...interface{}) { s.send(Warning, format, args...) }
func (s *Sink) Error(format string, args ...interface{})   { s.send(Error, format, args...) }

// Dropped returns how many messages were discarded because the buffer was full.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Run delivers messages to every consumer until ctx is done, then drains
// whatever is still buffered. Consumer errors are logged and otherwise ignored.
func (s *Sink) Run(ctx context.Context, logger logrus.FieldLogger, consumers ...Consumer) {
	deliver := func(msg Message) {
		for _, c := range consumers {
			// Use a fresh context so the final drain still reaches consumers.
			if err := c.Consume(context.WithoutCancel(ctx), msg); err != nil {
				logger.WithError(err).Warn("telemetry consumer failed")
			}
		}
	}
	for {
		select {
		case msg := <-s.ch:
			deliver(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-s.ch:
					deliver(msg)
				default:
					return
				}
			}
		}
	}
}

// LogConsumer forwards messages to a logrus logger at the matching level.
func LogConsumer(logger logrus.FieldLogger) Consumer {
	return ConsumerFunc(func(_ context.Context, msg Message) error {
		entry := logger.WithField("source", "pipeline")
		switch msg.Level {
		case Info:
			entry.Info(msg.Text)
		case Warning:
			entry.Warn(msg.Text)
		case Error:
			entry.Error(msg.Text)
		default:
			entry.Debug(msg.Text)
		}
		return nil
	})
}
