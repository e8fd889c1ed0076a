package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
)

// Presence flips the durable online flag and fans presence changes out to every live connection.
type Presence struct {
	log      *slog.Logger
	registry contract.IRegistry
	recorder contract.PresenceRecorder
	metrics  *observability.Metrics
}

func NewPresence(log *slog.Logger, registry contract.IRegistry,
	recorder contract.PresenceRecorder, metrics *observability.Metrics) *Presence {
	return &Presence{log: log, registry: registry, recorder: recorder, metrics: metrics}
}

// Announce records the transition, then broadcasts it to every registered connection,
// the announced identity's own included. The broadcast iterates a snapshot of the registry.
func (p *Presence) Announce(ctx context.Context, identityID string, online bool) {
	p.recorder.Record(ctx, identityID, online)

	evt := event.PresenceChanged{IdentityID: identityID, IsOnline: online}
	conns := p.registry.Connections()
	for _, conn := range conns {
		deliver(ctx, p.log, p.metrics, conn, evt)
	}
	p.log.Debug("Presence announced", "identity_id", identityID, "online", online, "recipients", len(conns))
}

// Snapshot privately sends the full list of online identities to conn.
func (p *Presence) Snapshot(ctx context.Context, conn contract.Connection) {
	deliver(ctx, p.log, p.metrics, conn, event.OnlineSnapshot{IdentityIDs: p.registry.Online()})
}
