package internal

import (
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults_From_Environ(t *testing.T) {
	req := require.New(t)
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	req.Error(err, "LOG_LEVEL and JWT_SECRET are required")

	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	_, err = env.UnmarshalFromEnviron(&config)
	req.NoError(err)

	req.NoError(config.Validate())
	req.Equal(DriverBadger, config.StorageDriver)
	req.Equal(10*time.Second, config.WriteTimeout)
	req.True(config.AuthEnabled)
	req.Equal([]string{"https://a.example.com", "https://b.example.com"}, config.Origins())
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	valid := Config{
		StorageDriver:        DriverSqlite,
		ConnectionBufferSize: 1,
		PresenceBuffer:       1,
		PongWait:             time.Second,
		WriteTimeout:         time.Second,
		HealthProbeInterval:  time.Second,
	}
	req.NoError(valid.Validate())

	unknown := valid
	unknown.StorageDriver = "postgres"
	req.ErrorIs(unknown.Validate(), errors.ErrUnknownDriver)

	noBuffer := valid
	noBuffer.ConnectionBufferSize = 0
	req.Error(noBuffer.Validate())
}
