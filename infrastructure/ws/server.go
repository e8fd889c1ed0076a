// Package ws carries relay frames over websockets, one connection per client.
package ws

import (
	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type Config struct {
	BufferSize     int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	MaxFrameBytes  int64
	AllowedOrigins []string
}

// Handler upgrades requests to websockets and feeds their frames to the dispatcher.
// Each connection gets one reading goroutine, the request's own, and one writing goroutine.
type Handler struct {
	log        *slog.Logger
	relay      *runtime.Relay
	dispatcher *runtime.Dispatcher
	tokens     *auth.Tokens
	metrics    *observability.Metrics
	cfg        Config
	upgrader   websocket.Upgrader
}

// NewHandler builds the websocket endpoint. A nil tokens disables handshake authentication.
func NewHandler(log *slog.Logger, relay *runtime.Relay, dispatcher *runtime.Dispatcher,
	tokens *auth.Tokens, metrics *observability.Metrics, cfg Config) *Handler {
	h := &Handler{
		log:        log,
		relay:      relay,
		dispatcher: dispatcher,
		tokens:     tokens,
		metrics:    metrics,
		cfg:        cfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 65536,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts non-browser clients, which send no Origin, and the configured origins.
// With no configured origins every origin is accepted.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(h.cfg.AllowedOrigins, origin)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var claimed string
	if h.tokens != nil {
		authCtx, err := h.tokens.Authenticate(r)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		claimed, _ = auth.UserIDFromContext(authCtx)
		ctx = authCtx
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	handle := sink.NewConnectionSink(h.cfg.BufferSize)
	go h.writePump(conn, handle)
	h.readPump(ctx, conn, handle, claimed)
}

// readPump runs until the client goes away. Its end is the only disconnect signal the relay gets.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, handle *sink.ConnectionSink, claimed string) {
	defer func() {
		h.relay.Disconnect(ctx, handle)
		handle.Close()
		_ = conn.Close()
	}()

	conn.SetReadLimit(h.cfg.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("WebSocket closed unexpectedly", "error", err)
			}
			return
		}

		in, err := event.Decode(frame)
		if err == nil {
			err = h.authorize(in, claimed)
		}
		if err == nil {
			err = h.dispatcher.Dispatch(ctx, handle, in)
		}
		if err != nil {
			h.reject(ctx, handle, err)
		}
	}
}

// authorize binds registration to the token identity when handshake authentication is on.
func (h *Handler) authorize(in event.Inbound, claimed string) error {
	reg, ok := in.(event.Register)
	if !ok || h.tokens == nil || reg.IdentityID == claimed {
		return nil
	}
	return fmt.Errorf("%w: token was issued to another identity", errors.ErrUnauthorized)
}

// reject reports a failed inbound frame to its sender. The connection stays open.
func (h *Handler) reject(ctx context.Context, handle *sink.ConnectionSink, err error) {
	code := ErrorCode(err)
	h.metrics.EventErrors.WithLabelValues(code).Inc()
	h.log.Debug("Inbound frame rejected", "code", code, "error", err)
	if pushErr := handle.Consume(ctx, event.ErrorNotice{Code: code, Message: err.Error()}); pushErr != nil {
		h.log.Debug("Could not report error to client", "error", pushErr)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, handle *sink.ConnectionSink) {
	ticker := time.NewTicker(h.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-handle.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case out := <-handle.Events():
			frame, err := event.Encode(out)
			if err != nil {
				h.log.Error("Failed to encode outbound event", "kind", out.Kind(), "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debug("WebSocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ErrorCode is the stable code sent to clients in error frames.
func ErrorCode(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrMalformedEvent):
		return "malformed-event"
	case stderrors.Is(err, errors.ErrInvalidImage):
		return "invalid-image"
	case stderrors.Is(err, errors.ErrNotRegistered):
		return "not-registered"
	case stderrors.Is(err, errors.ErrUnauthorized):
		return "unauthorized"
	case stderrors.Is(err, errors.ErrPersistence):
		return "persistence-failure"
	default:
		return "internal"
	}
}
