// Package api is the HTTP side of the relay: accounts and message history.
package api

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const maxBodyBytes = 8 << 20

type API struct {
	log      *slog.Logger
	accounts *services.AuthService
	messages *services.MessageService
	users    contract.IUserRepository
	tokens   *auth.Tokens
}

func New(log *slog.Logger, accounts *services.AuthService, messages *services.MessageService,
	users contract.IUserRepository, tokens *auth.Tokens) *API {
	return &API{log: log, accounts: accounts, messages: messages, users: users, tokens: tokens}
}

// Routes registers every endpoint on mux. Everything but register and login needs a token.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", a.register)
	mux.HandleFunc("POST /api/auth/login", a.login)
	mux.Handle("GET /api/auth/profile", a.tokens.Middleware(http.HandlerFunc(a.profile)))
	mux.Handle("PUT /api/auth/profile", a.tokens.Middleware(http.HandlerFunc(a.updateProfile)))
	mux.Handle("GET /api/messages/users", a.tokens.Middleware(http.HandlerFunc(a.sidebar)))
	mux.Handle("GET /api/messages/{peerId}", a.tokens.Middleware(http.HandlerFunc(a.conversation)))
	mux.Handle("PUT /api/messages/mark/{messageId}", a.tokens.Middleware(http.HandlerFunc(a.markOne)))
	mux.Handle("POST /api/messages/send", a.tokens.Middleware(http.HandlerFunc(a.send)))
}

type tokenResponse struct {
	Token string `json:"token"`
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type sendResponse struct {
	Message   event.MessagePayload `json:"message"`
	Delivered bool                 `json:"delivered"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var body auth.RegisterRequest
	if !a.decode(w, r, &body) {
		return
	}
	token, err := a.accounts.Register(r.Context(), body)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, tokenResponse{Token: token.String()})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var body auth.LoginRequest
	if !a.decode(w, r, &body) {
		return
	}
	token, err := a.accounts.Login(r.Context(), body)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, tokenResponse{Token: token.String()})
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	identity, err := a.users.GetUser(r.Context(), me)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, identity.Contact())
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	var body auth.UpdateProfileRequest
	if !a.decode(w, r, &body) {
		return
	}
	contact, err := a.accounts.UpdateProfile(r.Context(), me, body)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, contact)
}

func (a *API) sidebar(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	entries, err := a.messages.Sidebar(r.Context(), me)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, entries)
}

func (a *API) conversation(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	history, err := a.messages.Conversation(r.Context(), me, r.PathValue("peerId"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, lo.Map(history, func(m domain.Message, _ int) event.MessagePayload {
		return event.ToMessagePayload(m, true)
	}))
}

func (a *API) markOne(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("messageId"))
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err))
		return
	}
	message, err := a.messages.MarkOne(r.Context(), me, id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, event.ToMessagePayload(message, true))
}

// send posts a message through the live relay, so socket and HTTP clients see the same events.
func (a *API) send(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	receiverID := r.URL.Query().Get("receiverId")
	if receiverID == "" {
		a.fail(w, fmt.Errorf("%w: receiverId is required", errors.ErrMalformedEvent))
		return
	}
	var body sendRequest
	if !a.decode(w, r, &body) {
		return
	}
	result, err := a.messages.Send(r.Context(), me, receiverID, body.Text, body.Image)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, sendResponse{
		Message:   event.ToMessagePayload(result.Message, result.Persisted),
		Delivered: result.Delivered,
	})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err))
		return false
	}
	return true
}

func (a *API) fail(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		a.log.Error("Request failed", "error", err)
		message = http.StatusText(status)
	}
	a.respond(w, status, map[string]string{"error": message})
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Debug("Failed to write response", "error", err)
	}
}
