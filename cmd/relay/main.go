package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/infrastructure/api"
	grpc2 "chat-relay/infrastructure/grpc"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/storage/sqlite"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

type stores struct {
	messages contract.IMessageRepository
	users    contract.IUserRepository
	// badger is nil with the sqlite driver.
	badger *badger.DB
	close  func() error
}

func openStores(config internal.Config, log *slog.Logger) (stores, error) {
	switch config.StorageDriver {
	case internal.DriverSqlite:
		store, err := sqlite.Open(config.SqliteFilepath)
		if err != nil {
			return stores{}, fmt.Errorf("sqlite opening failed: %w", err)
		}
		return stores{messages: store, users: store, close: store.Close}, nil
	default:
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return stores{}, fmt.Errorf("database opening failed: %w", err)
		}
		return stores{
			messages: storage.NewMessageRepository(db, log),
			users:    storage.NewUserRepository(db),
			badger:   db,
			close:    db.Close,
		}, nil
	}
}

// run wires every component and owns their lifecycle, so deferred cleanups run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage
	st, err := openStores(config, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store...", "driver", config.StorageDriver)
		_ = st.close()
	}()

	// No connection survives a restart, whatever the store remembers.
	reset, err := st.users.ResetPresence(context.Background())
	if err != nil {
		return fmt.Errorf("presence reset failed: %w", err)
	}
	log.Info("Presence reset", "identities", reset)

	// 3. Runtime
	registerer := prometheus.NewRegistry()
	registerer.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registerer)

	registry := runtime.NewRegistry()
	presenceWriter := workers.NewPresenceWriter(log, st.users, metrics, config.PresenceBuffer, config.StoreTimeout)
	presence := runtime.NewPresence(log, registry, presenceWriter, metrics)
	relay := runtime.NewRelay(log, registry, presence, st.messages, metrics, config.MaxImageBytes)
	dispatcher := runtime.NewDispatcher(log, relay, metrics)

	tokens := auth.NewTokens(config.JwtSecret, config.AuthTokenDuration)
	accounts := services.NewAuthService(st.users, tokens, config.MaxImageBytes)
	conversations := services.NewMessageService(st.users, st.messages, relay)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	health := grpc2.NewHealthServer(log)
	sup := workers.NewSupervisor(log).Add(
		presenceWriter,
		workers.NewHealthProbeWorker(log, st.users, health, metrics, config.HealthProbeInterval, config.StoreTimeout),
		workers.NewChannelCapacityWorker(log, []workers.NamedChannel{
			{Name: "presence", Channel: presenceWriter.Queue()},
		}, metrics, config.HealthProbeInterval),
	)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. Servers
	var wsTokens *auth.Tokens
	if config.AuthEnabled {
		wsTokens = tokens
	}
	mux := http.NewServeMux()
	api.New(log, accounts, conversations, st.users, tokens).Routes(mux)
	mux.Handle("/ws", ws.NewHandler(log, relay, dispatcher, wsTokens, metrics, ws.Config{
		BufferSize:     config.ConnectionBufferSize,
		WriteTimeout:   config.WriteTimeout,
		PongWait:       config.PongWait,
		MaxFrameBytes:  int64(config.MaxFrameBytes),
		AllowedOrigins: config.Origins(),
	}))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	debug := internal.NewDebugServer(fmt.Sprintf("localhost:%d", config.DebugPort), registerer, relay, st.badger)

	healthAddress := fmt.Sprintf("%s:%d", config.Host, config.HealthGrpcPort)
	healthListener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}

	errChan := make(chan error, 3)
	go func() {
		log.Info("Starting relay server", "address", address, "at", time.Now().UTC(), "auth", config.AuthEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting debug server", "address", debug.Addr)
		if err := debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("debug server error: %w", err)
		}
	}()
	go func() {
		if err := health.Serve(healthListener); err != nil {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		log.Error("Server failed, shutting down", "error", runErr)
	}

	// 8. Final Cleanup
	// Hijacked websockets are not tracked by Shutdown, their read pumps end when the process does.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Relay server shutdown incomplete", "error", err)
	}
	_ = debug.Shutdown(shutdownCtx)
	health.Stop()

	sup.Stop()
	select {
	case <-supDone:
	case <-shutdownCtx.Done():
		log.Warn("Workers did not stop in time")
	}
	log.Info("Program stopped cleanly")

	return runErr
}
