package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

// recordingConn is an in-memory connection that keeps every pushed event.
type recordingConn struct {
	mu     sync.Mutex
	name   string
	events []event.Outbound
}

func newConn(name string) *recordingConn {
	return &recordingConn{name: name}
}

func (c *recordingConn) Consume(_ context.Context, e event.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *recordingConn) Events() []event.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Outbound(nil), c.events...)
}

func (c *recordingConn) Kinds() []event.Kind {
	return lo.Map(c.Events(), func(e event.Outbound, _ int) event.Kind { return e.Kind() })
}

func (c *recordingConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func ofKind[T event.Outbound](c *recordingConn) []T {
	var res []T
	for _, e := range c.Events() {
		if typed, ok := e.(T); ok {
			res = append(res, typed)
		}
	}
	return res
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

// memoryMessages is a minimal in-memory message store for scenario tests.
type memoryMessages struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (s *memoryMessages) StoreMessage(_ context.Context, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *memoryMessages) MarkSeen(_ context.Context, senderID, receiverID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for i, m := range s.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Seen {
			s.messages[i].Seen = true
			updated++
		}
	}
	return updated, nil
}

func (s *memoryMessages) MarkOneSeen(_ context.Context, id uuid.UUID, receiverID string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id && m.ReceiverID == receiverID {
			s.messages[i].Seen = true
			return s.messages[i], nil
		}
	}
	return domain.Message{}, errors.ErrMessageNotFound
}

func (s *memoryMessages) CountUnseen(_ context.Context, senderID, receiverID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.CountBy(s.messages, func(m domain.Message) bool {
		return m.SenderID == senderID && m.ReceiverID == receiverID && !m.Seen
	}), nil
}

func (s *memoryMessages) GetConversation(_ context.Context, a, b string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(s.messages, func(m domain.Message, _ int) bool {
		return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
	}), nil
}

// memoryPresence keeps the last recorded flag per identity.
type memoryPresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newMemoryPresence() *memoryPresence {
	return &memoryPresence{online: make(map[string]bool)}
}

func (p *memoryPresence) Record(_ context.Context, identityID string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[identityID] = online
}

func (p *memoryPresence) IsOnline(identityID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[identityID]
}
