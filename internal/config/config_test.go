package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Directory.Port)
	assert.Equal(t, 20000, cfg.Directory.BasePort)
	assert.Equal(t, "127.0.0.1", cfg.Directory.AdvertiseHost)
	assert.Equal(t, 8090, cfg.Admin.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.Gateway.WriteWait)
	assert.Equal(t, 30*time.Second, cfg.Redis.KeyTTL)
	assert.Equal(t, "chat:directory", cfg.Redis.RegistryPrefix)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "room-events", cfg.Events.Kafka.Topic)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "23456")
	t.Setenv("ROOM_BASE_PORT", "30000")
	t.Setenv("EVENTS_DRIVER", "kafka")
	t.Setenv("REDIS_KEY_TTL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 23456, cfg.Directory.Port)
	assert.Equal(t, 30000, cfg.Directory.BasePort)
	assert.Equal(t, "kafka", cfg.Events.Driver)
	assert.Equal(t, time.Minute, cfg.Redis.KeyTTL)
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("CHAT_DIRECTORY_ADDRESS", "10.1.1.1:12345")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1:12345", cfg.DirectoryAddress)
	assert.Empty(t, cfg.RoomHost)
	assert.Equal(t, "warn", cfg.Log.Level)
}
