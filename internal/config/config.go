package config

import (
	"time"

	pkgconfig "github.com/qwb00/ChatApp/pkg/config"
	"github.com/qwb00/ChatApp/pkg/pubsub"
)

type Config struct {
	Directory DirectoryConfig
	Admin     AdminConfig
	Gateway   GatewayConfig
	Redis     RedisConfig
	Events    pubsub.Config
	Log       LogConfig
}

type DirectoryConfig struct {
	Host string
	Port int
	// BasePort is the port handed to the first room created.
	BasePort int `mapstructure:"base_port"`
	// AdvertiseHost is the host clients and the gateway dial to reach rooms.
	AdvertiseHost string `mapstructure:"advertise_host"`
}

type AdminConfig struct {
	Enabled  bool
	Host     string
	HTTPPort int `mapstructure:"http_port"`
	GRPCPort int `mapstructure:"grpc_port"`
}

type GatewayConfig struct {
	Enabled        bool
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type RedisConfig struct {
	Enabled           bool
	Address           string
	Password          string
	DB                int
	RegistryPrefix    string        `mapstructure:"registry_prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	defaults := pubsub.DefaultConfig()

	// Set defaults
	v.SetDefault("directory.host", "0.0.0.0")
	v.SetDefault("directory.port", 12345)
	v.SetDefault("directory.base_port", 20000)
	v.SetDefault("directory.advertise_host", "127.0.0.1")
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.http_port", 8090)
	v.SetDefault("admin.grpc_port", 50060)
	v.SetDefault("gateway.enabled", true)
	v.SetDefault("gateway.write_wait", "10s")
	v.SetDefault("gateway.max_message_size", 4096)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.registry_prefix", "chat:directory")
	v.SetDefault("redis.heartbeat_interval", "10s")
	v.SetDefault("redis.key_ttl", "30s")
	v.SetDefault("events.driver", defaults.Driver)
	v.SetDefault("events.redis.address", defaults.Redis.Address)
	v.SetDefault("events.redis.pool_size", defaults.Redis.PoolSize)
	v.SetDefault("events.redis.read_timeout", defaults.Redis.ReadTimeout.String())
	v.SetDefault("events.redis.write_timeout", defaults.Redis.WriteTimeout.String())
	v.SetDefault("events.kafka.brokers", defaults.Kafka.Brokers)
	v.SetDefault("events.kafka.topic", defaults.Kafka.Topic)
	v.SetDefault("events.kafka.partitions", defaults.Kafka.Partitions)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("directory.port", "PORT")
	v.BindEnv("directory.base_port", "ROOM_BASE_PORT")
	v.BindEnv("directory.advertise_host", "ADVERTISE_HOST")
	v.BindEnv("admin.http_port", "ADMIN_HTTP_PORT")
	v.BindEnv("admin.grpc_port", "ADMIN_GRPC_PORT")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.driver", "EVENTS_DRIVER")
	v.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("events.kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Gateway.WriteWait = pkgconfig.Duration(v, "gateway.write_wait", 10*time.Second)
	cfg.Redis.HeartbeatInterval = pkgconfig.Duration(v, "redis.heartbeat_interval", 10*time.Second)
	cfg.Redis.KeyTTL = pkgconfig.Duration(v, "redis.key_ttl", 30*time.Second)
	cfg.Events.Redis.ReadTimeout = pkgconfig.Duration(v, "events.redis.read_timeout", defaults.Redis.ReadTimeout)
	cfg.Events.Redis.WriteTimeout = pkgconfig.Duration(v, "events.redis.write_timeout", defaults.Redis.WriteTimeout)

	return &cfg, nil
}

// ClientConfig configures the console client.
type ClientConfig struct {
	DirectoryAddress string `mapstructure:"directory_address"`
	// RoomHost overrides the host used to reach rooms; empty means the
	// directory's host.
	RoomHost string `mapstructure:"room_host"`
	Log      LogConfig
}

func LoadClient() (*ClientConfig, error) {
	v, err := pkgconfig.Load("./config", "client")
	if err != nil {
		return nil, err
	}

	v.SetDefault("directory_address", "127.0.0.1:12345")
	v.SetDefault("room_host", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pretty", true)

	v.BindEnv("directory_address", "CHAT_DIRECTORY_ADDRESS")
	v.BindEnv("room_host", "CHAT_ROOM_HOST")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
