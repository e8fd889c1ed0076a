package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Consume_Enqueues(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(2)
	evt := event.TypingNotice{From: "alice", To: "bob"}

	req.NoError(s.Consume(context.Background(), evt))

	req.Equal(event.Outbound(evt), <-s.Events())
}

func TestConnectionSink_Consume_Full_Buffer_Drops(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(1)

	// Given a buffer already full
	req.NoError(s.Consume(context.Background(), event.MessagesSeen{By: "bob"}))

	// When another event arrives
	err := s.Consume(context.Background(), event.MessagesSeen{By: "carol"})

	// Then it is dropped without blocking
	req.ErrorIs(err, errors.ErrSinkFull)
	req.Len(s.Events(), 1)
}

func TestConnectionSink_Consume_After_Close(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(4)

	s.Close()
	s.Close()

	req.ErrorIs(s.Consume(context.Background(), event.MessagesSeen{By: "bob"}), errors.ErrStaleHandle)
	req.Empty(s.Events())
	_, open := <-s.Done()
	req.False(open)
}
