package e2e

import (
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type testRelaySuite struct {
	BaseRelaySuite
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, &testRelaySuite{})
}

func (s *testRelaySuite) TestConversationFlow() {
	aliceID, aliceToken := s.Account("alice@example.com", "Alice")
	bobID, bobToken := s.Account("bob@example.com", "Bob")

	var alice, bob *Peer
	s.Run("Step 1: Both identities come online", func() {
		s.Step("Alice connects, then Bob")
		alice = s.Connect("alice", aliceID, aliceToken)
		bob = s.Connect("bob", bobID, bobToken)

		var presence event.PresenceChanged
		alice.Await(event.KindPresence, &presence)
		s.Require().Equal(event.PresenceChanged{IdentityID: bobID, IsOnline: true}, presence)

		s.Eventually(func() bool {
			identity, err := s.Users.GetUser(context.Background(), bobID)
			return err == nil && identity.IsOnline
		}, 5*time.Second, 50*time.Millisecond, "Bob's presence never reached the store")
	})

	var sent event.MessagePayload
	s.Run("Step 2: Alice says hi", func() {
		s.Step("Message is relayed, acknowledged and counted")
		alice.Send(event.KindSendMessage, event.SendMessage{Sender: aliceID, Receiver: bobID, Text: "hi"})

		var received event.MessagePayload
		bob.Await(event.KindReceiveMessage, &received)
		s.Require().Equal("hi", received.Text)
		s.Require().True(received.Persisted)

		var unseen event.UnseenCount
		bob.Await(event.KindUnseenCount, &unseen)
		s.Require().Equal(event.UnseenCount{From: aliceID, Count: 1}, unseen)

		alice.Await(event.KindMessageSent, &sent)
		s.Require().Equal(received.ID, sent.ID)
	})

	s.Run("Step 3: Bob's sidebar shows the unread message", func() {
		var sidebar []struct {
			ID          string `json:"id"`
			IsOnline    bool   `json:"isOnline"`
			UnseenCount int    `json:"unseenCount"`
		}
		s.Require().Equal(http.StatusOK, s.Call(http.MethodGet, "/api/messages/users", bobToken, nil, &sidebar))
		s.Require().Len(sidebar, 1)
		s.Require().Equal(aliceID, sidebar[0].ID)
		s.Require().True(sidebar[0].IsOnline)
		s.Require().Equal(1, sidebar[0].UnseenCount)
	})

	s.Run("Step 4: Bob reads the conversation", func() {
		s.Step("Mark seen over the socket notifies Alice")
		bob.Send(event.KindMarkSeen, event.MarkSeen{SenderID: aliceID, ReceiverID: bobID})

		var seen event.MessagesSeen
		alice.Await(event.KindMessagesSeen, &seen)
		s.Require().Equal(event.MessagesSeen{By: bobID}, seen)

		var history []event.MessagePayload
		s.Require().Equal(http.StatusOK, s.Call(http.MethodGet, "/api/messages/"+aliceID, bobToken, nil, &history))
		s.Require().Len(history, 1)
		s.Require().Equal(sent.ID, history[0].ID)
		s.Require().True(history[0].Seen)
	})

	s.Run("Step 5: Alice calls Bob, Bob rejects", func() {
		offer, err := json.Marshal(map[string]string{"type": "offer", "sdp": "v=0"})
		s.Require().NoError(err)
		alice.Send(event.KindCallOffer, event.CallSignal{To: bobID, Payload: offer})

		var relayed event.CallRelayed
		bob.Await(event.KindCallOffer, &relayed)
		s.Require().Equal(aliceID, relayed.From)
		s.Require().JSONEq(string(offer), string(relayed.Payload))

		bob.Send(event.KindRejectCall, event.CallSignal{To: aliceID})
		alice.Await(event.KindRejectCall, &relayed)
		s.Require().Equal(bobID, relayed.From)
	})

	s.Run("Step 6: Bob hangs up", func() {
		bob.Close()

		var presence event.PresenceChanged
		for presence.IdentityID != bobID || presence.IsOnline {
			alice.Await(event.KindPresence, &presence)
		}
		s.Eventually(func() bool {
			identity, err := s.Users.GetUser(context.Background(), bobID)
			return err == nil && !identity.IsOnline
		}, 5*time.Second, 50*time.Millisecond, "Bob's offline presence never reached the store")
	})

	s.Run("Step 7: Messages to an offline identity are kept", func() {
		var response struct {
			Message   event.MessagePayload `json:"message"`
			Delivered bool                 `json:"delivered"`
		}
		status := s.Call(http.MethodPost, "/api/messages/send?receiverId="+bobID, aliceToken,
			map[string]string{"text": "are you there?"}, &response)
		s.Require().Equal(http.StatusCreated, status)
		s.Require().False(response.Delivered)
		s.Require().True(response.Message.Persisted)

		var history []event.MessagePayload
		s.Require().Equal(http.StatusOK, s.Call(http.MethodGet, "/api/messages/"+bobID, aliceToken, nil, &history))
		s.Require().Len(history, 2)
	})

	alice.Close()
}
