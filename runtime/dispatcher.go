package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Dispatcher applies decoded inbound events of one connection to the relay.
// Apart from register, every event requires a bound identity and may only speak for it.
type Dispatcher struct {
	log     *slog.Logger
	relay   *Relay
	metrics *observability.Metrics
}

func NewDispatcher(log *slog.Logger, relay *Relay, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{log: log, relay: relay, metrics: metrics}
}

func (d *Dispatcher) Dispatch(ctx context.Context, conn contract.Connection, in event.Inbound) error {
	start := time.Now()
	kind := in.Kind()
	d.metrics.EventsTotal.WithLabelValues(string(kind)).Inc()
	defer func() {
		d.metrics.HandleLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	if reg, ok := in.(event.Register); ok {
		return d.relay.Register(ctx, reg.IdentityID, conn)
	}

	bound, ok := d.relay.registry.IdentityOf(conn)
	if !ok {
		return errors.ErrNotRegistered
	}

	switch e := in.(type) {
	case event.Typing:
		if e.From != bound {
			return impersonation(kind, e.From, bound)
		}
		d.relay.Typing(ctx, bound, e.To)
	case event.SendMessage:
		if e.Sender != bound {
			return impersonation(kind, e.Sender, bound)
		}
		_, err := d.relay.SendMessage(ctx, bound, e.Receiver, e.Text, e.Image)
		return err
	case event.MarkSeen:
		if e.ReceiverID != bound {
			return impersonation(kind, e.ReceiverID, bound)
		}
		_, err := d.relay.MarkSeen(ctx, e.SenderID, bound)
		return err
	case event.CallSignal:
		d.relay.Signal(ctx, bound, e)
	default:
		return fmt.Errorf("%w: unsupported kind %q", errors.ErrMalformedEvent, kind)
	}
	return nil
}

func impersonation(kind event.Kind, claimed, bound string) error {
	return fmt.Errorf("%w: %s on behalf of %s from connection bound to %s", errors.ErrUnauthorized, kind, claimed, bound)
}
