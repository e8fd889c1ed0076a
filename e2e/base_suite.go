package e2e

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/api"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/storage/sqlite"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

// BaseRelaySuite runs the whole relay in process, on a fresh store per suite.
type BaseRelaySuite struct {
	suite.Suite
	Config Config
	Server *httptest.Server
	Users  contract.IUserRepository

	stop    context.CancelFunc
	closers []func() error
}

// SetupSuite loads the environment configuration and starts the relay
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	messages, users := s.openStore(log)
	s.Users = users

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	registry := runtime.NewRegistry()
	presenceWriter := workers.NewPresenceWriter(log, users, metrics, 64, time.Second)
	presence := runtime.NewPresence(log, registry, presenceWriter, metrics)
	relay := runtime.NewRelay(log, registry, presence, messages, metrics, 1<<20)
	dispatcher := runtime.NewDispatcher(log, relay, metrics)
	tokens := auth.NewTokens("e2e-secret", time.Hour)

	mux := http.NewServeMux()
	api.New(log, services.NewAuthService(users, tokens, 1<<20), services.NewMessageService(users, messages, relay), users, tokens).Routes(mux)
	mux.Handle("/ws", ws.NewHandler(log, relay, dispatcher, tokens, metrics, ws.Config{
		BufferSize:    64,
		WriteTimeout:  time.Second,
		PongWait:      30 * time.Second,
		MaxFrameBytes: 2 << 20,
	}))
	s.Server = httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go workers.NewSupervisor(log).Add(presenceWriter).Run(ctx)
}

func (s *BaseRelaySuite) openStore(log *slog.Logger) (contract.IMessageRepository, contract.IUserRepository) {
	dir := s.T().TempDir()
	if s.Config.StorageDriver == internal.DriverSqlite {
		store, err := sqlite.Open(filepath.Join(dir, "relay.db"))
		s.Require().NoError(err)
		s.closers = append(s.closers, store.Close)
		return store, store
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.closers = append(s.closers, db.Close)
	return storage.NewMessageRepository(db, log), storage.NewUserRepository(db)
}

func (s *BaseRelaySuite) TearDownSuite() {
	s.Server.Close()
	s.stop()
	for _, closer := range s.closers {
		_ = closer()
	}
}

// Step prints a colorized header for a test step in logs
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call performs a JSON request against the REST surface and decodes the response into out when given
func (s *BaseRelaySuite) Call(method, path, token string, body any, out any) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	request, err := http.NewRequest(method, s.Server.URL+path, reader)
	s.Require().NoError(err)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	response, err := s.Server.Client().Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()
	raw, err := io.ReadAll(response.Body)
	s.Require().NoError(err)

	s.T().Logf("HTTP %s %s [%d] in %v", method, path, response.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		s.T().Logf("RESPONSE:\n%s", raw)
	}
	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return response.StatusCode
}

// Account registers a new identity and returns its id and token
func (s *BaseRelaySuite) Account(email, fullName string) (string, string) {
	var token struct {
		Token string `json:"token"`
	}
	status := s.Call(http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{
		Email:    email,
		FullName: fullName,
		Password: "MyP4ssword-Is-Strong!",
	}, &token)
	s.Require().Equal(http.StatusCreated, status)

	var profile struct {
		ID string `json:"id"`
	}
	s.Require().Equal(http.StatusOK, s.Call(http.MethodGet, "/api/auth/profile", token.Token, nil, &profile))
	return profile.ID, token.Token
}

// Peer is one websocket client of the relay.
type Peer struct {
	suite *BaseRelaySuite
	name  string
	conn  *websocket.Conn
}

// Connect opens a socket with token and registers identityID on it.
func (s *BaseRelaySuite) Connect(name, identityID, token string) *Peer {
	url := "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to dial relay as "+name)

	peer := &Peer{suite: s, name: name, conn: conn}
	peer.Send(event.KindRegister, event.Register{IdentityID: identityID})
	peer.Await(event.KindOnlineUsers)
	return peer
}

func (p *Peer) Send(kind event.Kind, payload any) {
	raw, err := json.Marshal(payload)
	p.suite.Require().NoError(err)
	if p.suite.Config.DebugJSON {
		p.suite.T().Logf("%s -> %s %s", p.name, kind, raw)
	}
	p.suite.Require().NoError(p.conn.WriteJSON(event.Envelope{Type: kind, Payload: raw}))
}

// Await reads frames until one of the wanted kind arrives and decodes it into out.
func (p *Peer) Await(kind event.Kind, out ...any) {
	_ = p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env event.Envelope
		p.suite.Require().NoError(p.conn.ReadJSON(&env), "%s waiting for %s", p.name, kind)
		if p.suite.Config.DebugJSON {
			p.suite.T().Logf("%s <- %s %s", p.name, env.Type, env.Payload)
		}
		if env.Type != kind {
			continue
		}
		for _, o := range out {
			p.suite.Require().NoError(json.Unmarshal(env.Payload, o))
		}
		return
	}
}

func (p *Peer) Close() {
	_ = p.conn.Close()
}
