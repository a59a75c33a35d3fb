package registry

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/qwb00/ChatApp/internal/config"
	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/pkg/log"
	"github.com/redis/go-redis/v9"
)

// RedisAnnouncer keeps one key per room alive in Redis:
// <prefix>:room:<port> = <name>@<host>:<port>.
type RedisAnnouncer struct {
	client            *redis.Client
	advertiseHost     string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]string // key -> value, owned by this directory
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

func NewRedisAnnouncer(cfg config.RedisConfig, advertiseHost string) (*RedisAnnouncer, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisAnnouncer{
		client:            client,
		advertiseHost:     advertiseHost,
		prefix:            cfg.RegistryPrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]string),
	}, nil
}

func roomKey(prefix string, port int) string {
	return fmt.Sprintf("%s:room:%d", prefix, port)
}

func roomValue(entry domain.RoomEntry, host string) string {
	return entry.Name + "@" + net.JoinHostPort(host, strconv.Itoa(entry.Port))
}

// RoomCreated writes the room key. Failures are logged; the room keeps
// running without an announcement.
func (r *RedisAnnouncer) RoomCreated(ctx context.Context, entry domain.RoomEntry) {
	l := log.Ctx(ctx)
	if err := r.Register(ctx, entry); err != nil {
		l.Warn().Err(err).Int(log.FieldPort, entry.Port).Msg("failed to announce room")
	}
}

func (r *RedisAnnouncer) Register(ctx context.Context, entry domain.RoomEntry) error {
	key := roomKey(r.prefix, entry.Port)
	value := roomValue(entry, r.advertiseHost)

	if err := r.client.Set(ctx, key, value, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register room: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = value
	r.mu.Unlock()

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldRoom, entry.Name).Str("address", value).Msg("announced room")
	return nil
}

// Lookup returns the announced value for port, as seen by any directory
// sharing the prefix. The admin API reports it next to the live room.
func (r *RedisAnnouncer) Lookup(ctx context.Context, port int) (string, error) {
	value, err := r.client.Get(ctx, roomKey(r.prefix, port)).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("room on port %d not announced", port)
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup room: %w", err)
	}
	return value, nil
}

func (r *RedisAnnouncer) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("room announcement heartbeat started")
	return nil
}

func (r *RedisAnnouncer) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisAnnouncer) snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make(map[string]string, len(r.managedKeys))
	for k, v := range r.managedKeys {
		keys[k] = v
	}
	return keys
}

func (r *RedisAnnouncer) refreshKeys(ctx context.Context) {
	for key, value := range r.snapshot() {
		if err := r.client.Set(ctx, key, value, r.keyTTL).Err(); err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh room key")
		}
	}
}

func (r *RedisAnnouncer) stopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Close stops the heartbeat and removes every key this directory wrote.
func (r *RedisAnnouncer) Close() error {
	r.stopHeartbeat()

	keys := r.snapshot()
	if len(keys) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		if err := r.client.Del(ctx, names...).Err(); err != nil {
			l := log.L()
			l.Warn().Err(err).Int("keys", len(names)).Msg("failed to remove room keys")
		}
		cancel()
	}
	return r.client.Close()
}
