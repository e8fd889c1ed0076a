package internal

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"
)

const (
	DriverBadger = "badger"
	DriverSqlite = "sqlite"
)

type Config struct {
	Host            string `env:"HOST,default=0.0.0.0"`
	Port            int    `env:"PORT,default=8080"`
	DebugPort       int    `env:"DEBUG_PORT,default=6060"`
	HealthGrpcPort  int    `env:"HEALTH_GRPC_PORT,default=9090"`
	LogLevel        string `env:"LOG_LEVEL,required=true"`
	StorageDriver   string `env:"STORAGE_DRIVER,default=badger"`
	BadgerFilepath  string `env:"BADGER_FILEPATH,default=./data/badger"`
	SqliteFilepath  string `env:"SQLITE_FILEPATH,default=./data/relay.db"`
	AllowedOrigins  string `env:"ALLOWED_ORIGINS"`
	JwtSecret       string `env:"JWT_SECRET,required=true"`
	AuthEnabled     bool   `env:"AUTH_ENABLED,default=true"`
	MaxImageBytes   int    `env:"MAX_IMAGE_BYTES,default=5242880"`
	MaxFrameBytes   int    `env:"MAX_FRAME_BYTES,default=8388608"`
	PresenceBuffer  int    `env:"PRESENCE_BUFFER_SIZE,default=1024"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongWait             time.Duration `env:"PONG_WAIT,default=60s"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT,default=5s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	HealthProbeInterval  time.Duration `env:"HEALTH_PROBE_INTERVAL,default=15s"`
}

// Validate checks what the env tags can't express.
func (c Config) Validate() error {
	if c.StorageDriver != DriverBadger && c.StorageDriver != DriverSqlite {
		return fmt.Errorf("%w: %q", errors.ErrUnknownDriver, c.StorageDriver)
	}
	if c.ConnectionBufferSize <= 0 || c.PresenceBuffer <= 0 {
		return fmt.Errorf("buffer sizes must be positive")
	}
	if c.PongWait <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("PONG_WAIT and WRITE_TIMEOUT must be positive")
	}
	if c.HealthProbeInterval <= 0 {
		return fmt.Errorf("HEALTH_PROBE_INTERVAL must be positive")
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas. Empty means any origin.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
