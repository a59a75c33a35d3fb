package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwb00/ChatApp/internal/config"
	"github.com/qwb00/ChatApp/internal/domain"
)

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "chat:directory:room:20000", roomKey("chat:directory", 20000))
}

func TestRoomValue(t *testing.T) {
	entry := domain.RoomEntry{Port: 20001, Name: domain.RoomName(20001)}
	assert.Equal(t, "Chat_20001@127.0.0.1:20001", roomValue(entry, "127.0.0.1"))
	assert.Equal(t, "Chat_20001@[::1]:20001", roomValue(entry, "::1"))
}

func TestNopAnnouncer(t *testing.T) {
	var a Announcer = NopAnnouncer{}
	a.RoomCreated(context.Background(), domain.RoomEntry{Port: 1, Name: "Chat_1"})
	assert.NoError(t, a.StartHeartbeat(context.Background()))
	assert.NoError(t, a.Close())
}

func newTestAnnouncer(t *testing.T, mr *miniredis.Miniredis, heartbeat time.Duration) *RedisAnnouncer {
	t.Helper()

	a, err := NewRedisAnnouncer(config.RedisConfig{
		Address:           mr.Addr(),
		RegistryPrefix:    "chat:directory",
		HeartbeatInterval: heartbeat,
		KeyTTL:            30 * time.Second,
	}, "127.0.0.1")
	require.NoError(t, err)
	return a
}

func TestRedisAnnouncer_RoomCreated(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newTestAnnouncer(t, mr, time.Hour)
	defer a.Close()

	ctx := context.Background()
	a.RoomCreated(ctx, domain.RoomEntry{Port: 20000, Name: "Chat_20000"})

	got, err := mr.Get("chat:directory:room:20000")
	require.NoError(t, err)
	assert.Equal(t, "Chat_20000@127.0.0.1:20000", got)
	assert.Equal(t, 30*time.Second, mr.TTL("chat:directory:room:20000"))

	value, err := a.Lookup(ctx, 20000)
	require.NoError(t, err)
	assert.Equal(t, got, value)

	_, err = a.Lookup(ctx, 20001)
	assert.Error(t, err)
}

func TestRedisAnnouncer_HeartbeatRefreshesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newTestAnnouncer(t, mr, 20*time.Millisecond)
	defer a.Close()

	a.RoomCreated(context.Background(), domain.RoomEntry{Port: 20000, Name: "Chat_20000"})
	mr.FastForward(20 * time.Second)
	require.Equal(t, 10*time.Second, mr.TTL("chat:directory:room:20000"))

	require.NoError(t, a.StartHeartbeat(context.Background()))
	assert.Eventually(t, func() bool {
		return mr.TTL("chat:directory:room:20000") == 30*time.Second
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisAnnouncer_CloseRemovesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newTestAnnouncer(t, mr, time.Hour)

	a.RoomCreated(context.Background(), domain.RoomEntry{Port: 20000, Name: "Chat_20000"})
	a.RoomCreated(context.Background(), domain.RoomEntry{Port: 20001, Name: "Chat_20001"})
	require.NoError(t, mr.Set("chat:directory:room:30000", "Chat_30000@10.0.0.2:30000"))

	require.NoError(t, a.Close())

	assert.False(t, mr.Exists("chat:directory:room:20000"))
	assert.False(t, mr.Exists("chat:directory:room:20001"))
	// Keys written by other directories stay.
	assert.True(t, mr.Exists("chat:directory:room:30000"))
}

func TestNewRedisAnnouncer_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisAnnouncer(config.RedisConfig{Address: addr, KeyTTL: time.Second, HeartbeatInterval: time.Second}, "127.0.0.1")
	assert.Error(t, err)
}
