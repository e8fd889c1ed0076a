package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
)

// deliver pushes evt to conn, fire-and-forget.
// Failures are logged and counted, never returned: the durable record is the only guarantee.
func deliver(ctx context.Context, log *slog.Logger, metrics *observability.Metrics,
	conn contract.Connection, evt event.Outbound) bool {
	if err := conn.Consume(ctx, evt); err != nil {
		metrics.Deliveries.WithLabelValues(string(evt.Kind()), "dropped").Inc()
		log.Warn("failed to push event to connection", "kind", evt.Kind(), "error", err)
		return false
	}
	metrics.Deliveries.WithLabelValues(string(evt.Kind()), "ok").Inc()
	return true
}
