package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"sync"
)

// ConnectionSink is the relay-side handle of one live connection.
// Consume only enqueues; the transport owning the sink drains Events and writes them out.
type ConnectionSink struct {
	events    chan event.Outbound
	closed    chan struct{}
	closeOnce sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		events: make(chan event.Outbound, bufferSize),
		closed: make(chan struct{}),
	}
}

// Consume never blocks: a full buffer means a slow reader, and the event is dropped.
func (s *ConnectionSink) Consume(ctx context.Context, e event.Outbound) error {
	select {
	case <-s.closed:
		return errors.ErrStaleHandle
	default:
	}

	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSinkFull
	}
}

func (s *ConnectionSink) Events() <-chan event.Outbound {
	return s.events
}

// Done is closed once the connection is gone.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.closed
}

// Close marks the sink as gone. The events channel is never closed so late producers can't panic.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}
