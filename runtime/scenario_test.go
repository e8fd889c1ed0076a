package runtime

import (
	"chat-relay/domain/event"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScenario_Message_Seen_Then_Disconnect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := &memoryMessages{}
	registry := NewRegistry()
	metrics := testMetrics()
	recorder := newMemoryPresence()
	presence := NewPresence(testLogger(), registry, recorder, metrics)
	relay := NewRelay(testLogger(), registry, presence, store, metrics, maxImageBytes)
	connA, connB := newConn("A"), newConn("B")

	// Given A and B are registered
	req.NoError(relay.Register(ctx, "A", connA))
	req.NoError(relay.Register(ctx, "B", connB))
	connA.Reset()
	connB.Reset()

	// When A sends "hi" to B
	_, err := relay.SendMessage(ctx, "A", "B", "hi", "")
	req.NoError(err)

	// Then B receives it and A gets the acknowledgement
	received := ofKind[event.ReceiveMessage](connB)
	req.Len(received, 1)
	req.Equal("hi", received[0].Text)
	sent := ofKind[event.MessageSent](connA)
	req.Len(sent, 1)
	req.Equal(received[0].ID, sent[0].ID)

	// When B marks A's messages as seen
	_, err = relay.MarkSeen(ctx, "A", "B")
	req.NoError(err)

	// Then A learns B read them
	req.Equal([]event.MessagesSeen{{By: "B"}}, ofKind[event.MessagesSeen](connA))

	// When B disconnects
	relay.Disconnect(ctx, connB)

	// Then A sees B go offline
	req.Equal([]event.PresenceChanged{{IdentityID: "B", IsOnline: false}}, ofKind[event.PresenceChanged](connA))
	req.False(recorder.IsOnline("B"))
	req.True(recorder.IsOnline("A"))
	req.Equal([]string{"A"}, relay.Online())
}
