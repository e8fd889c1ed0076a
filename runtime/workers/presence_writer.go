package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

type presenceUpdate struct {
	identityID string
	online     bool
}

// PresenceWriter mirrors presence transitions into the user store off the relay path.
// Updates are applied in the order they were recorded. When the queue is full the update is dropped:
// the durable flag is best-effort and the registry stays the source of truth.
type PresenceWriter struct {
	log          *slog.Logger
	users        contract.IUserRepository
	metrics      *observability.Metrics
	updates      chan presenceUpdate
	writeTimeout time.Duration
}

func NewPresenceWriter(log *slog.Logger, users contract.IUserRepository, metrics *observability.Metrics,
	bufferSize int, writeTimeout time.Duration) *PresenceWriter {
	return &PresenceWriter{
		log:          log,
		users:        users,
		metrics:      metrics,
		updates:      make(chan presenceUpdate, bufferSize),
		writeTimeout: writeTimeout,
	}
}

// Queue exposes the pending updates channel to the capacity sampler.
func (w *PresenceWriter) Queue() any {
	return w.updates
}

// Record never blocks the caller.
func (w *PresenceWriter) Record(_ context.Context, identityID string, online bool) {
	select {
	case w.updates <- presenceUpdate{identityID: identityID, online: online}:
	default:
		w.metrics.PresenceWrites.WithLabelValues("dropped").Inc()
		w.log.Warn("Presence queue full, dropping update", "identity_id", identityID, "online", online)
	}
}

func (w *PresenceWriter) Run(ctx context.Context) error {
	w.log.Info("Starting presence writer")
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case u := <-w.updates:
			w.apply(ctx, u)
		}
	}
}

// drain flushes what is left in the queue so the last transitions survive a shutdown.
func (w *PresenceWriter) drain() {
	for {
		select {
		case u := <-w.updates:
			w.apply(context.Background(), u)
		default:
			return
		}
	}
}

func (w *PresenceWriter) apply(ctx context.Context, u presenceUpdate) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.writeTimeout)
	defer cancel()

	if err := w.users.SetOnline(ctx, u.identityID, u.online); err != nil {
		w.metrics.PresenceWrites.WithLabelValues("failed").Inc()
		w.log.Warn("Failed to write presence", "identity_id", u.identityID, "online", u.online, "error", err)
		return
	}
	w.metrics.PresenceWrites.WithLabelValues("ok").Inc()
}
