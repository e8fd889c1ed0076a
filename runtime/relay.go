package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Relay routes live events between registered connections.
// It owns the registry: no other component writes it.
type Relay struct {
	log           *slog.Logger
	registry      contract.IRegistry
	presence      *Presence
	messages      contract.IMessageRepository
	metrics       *observability.Metrics
	maxImageBytes int
	now           func() time.Time

	// transitions serializes register/unregister together with their presence announcement,
	// so two racing transitions of the same identity can't broadcast out of order.
	transitions sync.Mutex
}

// RelayResult describes what happened to one relayed message.
// Persisted and Delivered are independent: neither effect is rolled back when the other fails.
type RelayResult struct {
	Message      domain.Message
	Persisted    bool
	Delivered    bool
	Acknowledged bool
}

func NewRelay(log *slog.Logger, registry contract.IRegistry, presence *Presence,
	messages contract.IMessageRepository, metrics *observability.Metrics, maxImageBytes int) *Relay {
	return &Relay{
		log:           log,
		registry:      registry,
		presence:      presence,
		messages:      messages,
		metrics:       metrics,
		maxImageBytes: maxImageBytes,
		now:           time.Now,
	}
}

// Register binds conn to identityID.
// An identity appearing for the first time is announced online; a reconnect only swaps the handle.
// The new connection always receives the online snapshot.
func (r *Relay) Register(ctx context.Context, identityID string, conn contract.Connection) error {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return fmt.Errorf("%w: empty identity", errors.ErrMalformedEvent)
	}

	r.transitions.Lock()
	defer r.transitions.Unlock()

	if bound, ok := r.registry.IdentityOf(conn); ok && bound != identityID {
		return fmt.Errorf("%w: connection already bound to %s", errors.ErrUnauthorized, bound)
	}

	fresh, previous := r.registry.Register(identityID, conn)
	r.metrics.ConnectionsOnline.Set(float64(r.registry.Len()))
	if fresh {
		r.log.Info("Identity online", "identity_id", identityID)
		r.presence.Announce(ctx, identityID, true)
	} else if previous != conn {
		r.log.Info("Connection handle replaced", "identity_id", identityID)
	}
	if previous != conn {
		r.presence.Snapshot(ctx, conn)
	}
	return nil
}

// Disconnect releases conn. A stale handle, superseded by a newer registration, is ignored.
func (r *Relay) Disconnect(ctx context.Context, conn contract.Connection) {
	r.transitions.Lock()
	defer r.transitions.Unlock()

	identityID, ok := r.registry.Unregister(conn)
	if !ok {
		r.log.Debug("Ignoring disconnect of unbound connection", "error", errors.ErrStaleHandle)
		return
	}
	r.metrics.ConnectionsOnline.Set(float64(r.registry.Len()))
	r.log.Info("Identity offline", "identity_id", identityID)
	r.presence.Announce(context.WithoutCancel(ctx), identityID, false)
}

// SendMessage persists the message, then forwards it to the receiver and acknowledges it to the sender.
// A persistence failure is returned alongside a result describing the live delivery that still happened.
func (r *Relay) SendMessage(ctx context.Context, senderID, receiverID, text, image string) (RelayResult, error) {
	msg := domain.NewMessage(senderID, receiverID, text, image, r.now())
	if !msg.IsStorable() {
		return RelayResult{}, fmt.Errorf("%w: message has neither text nor image", errors.ErrMalformedEvent)
	}
	if _, err := domain.ValidateImage(msg.Image, r.maxImageBytes); err != nil {
		return RelayResult{}, err
	}

	// Once validated the message must outlive its sender's connection.
	ctx = context.WithoutCancel(ctx)
	result := RelayResult{Message: msg}

	var persistErr error
	if err := r.messages.StoreMessage(ctx, msg); err != nil {
		persistErr = fmt.Errorf("%w: %w", errors.ErrPersistence, err)
		r.metrics.PersistenceFailures.WithLabelValues("store_message").Inc()
		r.log.Error("Failed to store message", "message_id", msg.ID, "error", err)
	} else {
		result.Persisted = true
	}

	payload := event.ToMessagePayload(msg, result.Persisted)

	// Resolve after the store write: the receiver may have come or gone meanwhile.
	if conn, ok := r.resolve(receiverID, event.KindReceiveMessage); ok {
		result.Delivered = deliver(ctx, r.log, r.metrics, conn, event.ReceiveMessage{MessagePayload: payload})
		if result.Persisted {
			r.pushUnseenCount(ctx, conn, senderID, receiverID)
		}
	}
	if conn, ok := r.resolve(senderID, event.KindMessageSent); ok {
		result.Acknowledged = deliver(ctx, r.log, r.metrics, conn, event.MessageSent{MessagePayload: payload})
	}
	return result, persistErr
}

func (r *Relay) pushUnseenCount(ctx context.Context, conn contract.Connection, senderID, receiverID string) {
	count, err := r.messages.CountUnseen(ctx, senderID, receiverID)
	if err != nil {
		r.metrics.PersistenceFailures.WithLabelValues("count_unseen").Inc()
		r.log.Warn("Failed to count unseen messages", "sender_id", senderID, "receiver_id", receiverID, "error", err)
		return
	}
	deliver(ctx, r.log, r.metrics, conn, event.UnseenCount{From: senderID, Count: count})
}

// Typing forwards an ephemeral typing notice. Nothing is stored.
func (r *Relay) Typing(ctx context.Context, fromID, toID string) {
	if conn, ok := r.resolve(toID, event.KindTyping); ok {
		deliver(ctx, r.log, r.metrics, conn, event.TypingNotice{From: fromID, To: toID})
	}
}

// MarkSeen flips every unseen senderID→receiverID message to seen,
// then tells the sender, if online, that receiverID has read them.
func (r *Relay) MarkSeen(ctx context.Context, senderID, receiverID string) (int, error) {
	ctx = context.WithoutCancel(ctx)
	updated, err := r.messages.MarkSeen(ctx, senderID, receiverID)
	if err != nil {
		r.metrics.PersistenceFailures.WithLabelValues("mark_seen").Inc()
		return 0, fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}
	r.log.Debug("Messages marked as seen", "sender_id", senderID, "receiver_id", receiverID, "count", updated)
	if conn, ok := r.resolve(senderID, event.KindMessagesSeen); ok {
		deliver(ctx, r.log, r.metrics, conn, event.MessagesSeen{By: receiverID})
	}
	return updated, nil
}

// Signal routes a call signal to its target, stamped with the sender identity bound to the registry.
func (r *Relay) Signal(ctx context.Context, fromID string, sig event.CallSignal) {
	if conn, ok := r.resolve(sig.To, sig.Type); ok {
		deliver(ctx, r.log, r.metrics, conn, event.CallRelayed{
			Type:    sig.Type,
			From:    fromID,
			To:      sig.To,
			Payload: sig.Payload,
		})
	}
}

// Online returns the identities currently holding a live connection.
func (r *Relay) Online() []string {
	return r.registry.Online()
}

func (r *Relay) resolve(identityID string, kind event.Kind) (contract.Connection, bool) {
	conn, ok := r.registry.Resolve(identityID)
	if !ok {
		r.metrics.RoutingMisses.WithLabelValues(string(kind)).Inc()
		r.log.Debug("Routing miss", "identity_id", identityID, "kind", kind, "error", errors.ErrRoutingMiss)
	}
	return conn, ok
}
