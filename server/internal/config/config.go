package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wamstack/wamstack/pkg/types"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort  = 8080
	DefaultBackend   = BackendMemory
	DefaultCapacity  = 10000
	DefaultKeepalive = 15 * time.Second
	DefaultRedisAddr = "localhost:6379"
	DefaultHistory   = 200
	DefaultLogLevel  = "info"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `console:` key in the same file is ignored.
type Config struct {
	Server   ServerConfig `yaml:"server"`
	LogLevel string       `yaml:"log_level"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and push stream listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Storage selects and configures the readings backend.
	Storage StorageConfig `yaml:"storage"`

	// Stream controls the push endpoints.
	Stream StreamConfig `yaml:"stream"`

	// Thresholds are the initial alert bounds. Bounds saved through the API
	// take precedence when the backend already holds them.
	Thresholds types.Thresholds `yaml:"thresholds"`

	// Alerts holds webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// StorageConfig selects the readings backend.
type StorageConfig struct {
	// Backend is one of: memory | badger | redis.
	Backend string `yaml:"backend"`

	// Path is the badger data directory. Empty runs badger in memory.
	Path string `yaml:"path"`

	// RedisAddr is host:port of the redis server.
	RedisAddr string `yaml:"redis_addr"`

	// Capacity is how many recent readings are retained.
	Capacity int `yaml:"capacity"`
}

// StreamConfig controls the push endpoints.
type StreamConfig struct {
	// Keepalive is the interval between SSE keepalive comments.
	Keepalive time.Duration `yaml:"keepalive"`
}

// AlertsConfig holds webhook delivery targets and history retention.
type AlertsConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`

	// History is how many recent alerts GET /api/v1/alerts can return.
	History int `yaml:"history"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Storage: StorageConfig{
				Backend:   DefaultBackend,
				RedisAddr: DefaultRedisAddr,
				Capacity:  DefaultCapacity,
			},
			Stream:     StreamConfig{Keepalive: DefaultKeepalive},
			Thresholds: types.DefaultThresholds(),
			Alerts:     AlertsConfig{History: DefaultHistory},
		},
		LogLevel: DefaultLogLevel,
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Storage.Backend {
	case BackendMemory, BackendBadger:
	case BackendRedis:
		if s.Storage.RedisAddr == "" {
			return fmt.Errorf("server.storage.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want memory|badger|redis", s.Storage.Backend)
	}
	if s.Storage.Capacity <= 0 {
		return fmt.Errorf("server.storage.capacity must be positive")
	}
	if s.Stream.Keepalive <= 0 {
		return fmt.Errorf("server.stream.keepalive must be positive")
	}
	if err := s.Thresholds.Validate(); err != nil {
		return fmt.Errorf("server.thresholds: %w", err)
	}
	if s.Alerts.History <= 0 {
		return fmt.Errorf("server.alerts.history must be positive")
	}
	for i, wh := range s.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, wh.Type)
		}
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("log_level: unknown level %q", s)
	}
	return l, nil
}
