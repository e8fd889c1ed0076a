// Package event defines the closed set of frames exchanged with a live connection.
// Inbound frames are produced by clients, outbound frames by the relay.
package event

import (
	"chat-relay/domain"
	"encoding/json"
	"time"
)

type Kind string

const (
	KindRegister     Kind = "register"
	KindTyping       Kind = "typing"
	KindSendMessage  Kind = "send-message"
	KindMarkSeen     Kind = "mark-seen"
	KindCallOffer    Kind = "call-offer"
	KindCallAnswer   Kind = "call-answer"
	KindICECandidate Kind = "ice-candidate"
	KindRejectCall   Kind = "reject-call"
	KindCancelCall   Kind = "cancel-call"

	KindPresence       Kind = "presence"
	KindOnlineUsers    Kind = "online-users"
	KindReceiveMessage Kind = "receive-message"
	KindMessageSent    Kind = "message-sent"
	KindUnseenCount    Kind = "unseen-count"
	KindMessagesSeen   Kind = "messages-seen"
	KindError          Kind = "error"
)

// IsCallSignal reports whether k is one of the five routed call kinds.
func (k Kind) IsCallSignal() bool {
	switch k {
	case KindCallOffer, KindCallAnswer, KindICECandidate, KindRejectCall, KindCancelCall:
		return true
	}
	return false
}

// Inbound is a frame sent by a client. The set is closed: only types of this package implement it.
type Inbound interface {
	Kind() Kind
	inbound()
}

// Outbound is a frame pushed by the relay to a connection.
type Outbound interface {
	Kind() Kind
	outbound()
}

type Register struct {
	IdentityID string `json:"identityId" validate:"required"`
}

type Typing struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type SendMessage struct {
	Sender   string `json:"sender" validate:"required"`
	Receiver string `json:"receiver" validate:"required"`
	Text     string `json:"text"`
	Image    string `json:"image"`
}

type MarkSeen struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
}

// CallSignal carries one of the five call kinds. Payload is opaque to the relay
// once it has passed shape validation.
type CallSignal struct {
	Type    Kind            `json:"-"`
	To      string          `json:"to" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

func (Register) Kind() Kind { return KindRegister }
func (Typing) Kind() Kind { return KindTyping }
func (SendMessage) Kind() Kind { return KindSendMessage }
func (MarkSeen) Kind() Kind { return KindMarkSeen }
func (c CallSignal) Kind() Kind { return c.Type }
func (Register) inbound() {}
func (Typing) inbound() {}
func (SendMessage) inbound() {}
func (MarkSeen) inbound() {}
func (CallSignal) inbound() {}

type PresenceChanged struct {
	IdentityID string `json:"identityId"`
	IsOnline   bool   `json:"isOnline"`
}

type OnlineSnapshot struct {
	IdentityIDs []string `json:"identityIds"`
}

// MessagePayload is the wire form of a stored message.
type MessagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	Image      string    `json:"image"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
	Persisted  bool      `json:"persisted"`
}

type ReceiveMessage struct {
	MessagePayload
}

type MessageSent struct {
	MessagePayload
}

type UnseenCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

type TypingNotice struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type MessagesSeen struct {
	By string `json:"by"`
}

type CallRelayed struct {
	Type    Kind            `json:"-"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ErrorNotice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (PresenceChanged) Kind() Kind { return KindPresence }
func (OnlineSnapshot) Kind() Kind { return KindOnlineUsers }
func (ReceiveMessage) Kind() Kind { return KindReceiveMessage }
func (MessageSent) Kind() Kind { return KindMessageSent }
func (UnseenCount) Kind() Kind { return KindUnseenCount }
func (TypingNotice) Kind() Kind { return KindTyping }
func (MessagesSeen) Kind() Kind { return KindMessagesSeen }
func (c CallRelayed) Kind() Kind { return c.Type }
func (ErrorNotice) Kind() Kind { return KindError }
func (PresenceChanged) outbound() {}
func (OnlineSnapshot) outbound() {}
func (ReceiveMessage) outbound() {}
func (MessageSent) outbound() {}
func (UnseenCount) outbound() {}
func (TypingNotice) outbound() {}
func (MessagesSeen) outbound() {}
func (CallRelayed) outbound() {}
func (ErrorNotice) outbound() {}

func ToMessagePayload(m domain.Message, persisted bool) MessagePayload {
	return MessagePayload{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt,
		Persisted:  persisted,
	}
}
