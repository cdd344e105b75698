package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wamstack/wamstack/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultServerURL     = "http://localhost:8080"
	DefaultListenAddr    = ":8090"
	DefaultCapacity      = 1000
	DefaultSnapshotLimit = 500
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultAnalysisRows  = 200
	DefaultLogLevel      = "info"
)

// Config is the top-level configuration file. The server binary reads its
// own section of the same file.
type Config struct {
	Console  ConsoleConfig `yaml:"console"`
	LogLevel string        `yaml:"log_level"`
}

// ConsoleConfig holds all console-side settings.
type ConsoleConfig struct {
	// ServerURL is the base URL of the telemetry server REST API.
	ServerURL string `yaml:"server_url"`

	// StreamURL is the live push endpoint. ws:// and wss:// select WebSocket,
	// http:// and https:// select Server-Sent Events. Defaults to
	// ServerURL + "/stream".
	StreamURL string `yaml:"stream_url"`

	// ListenAddr is where the console serves its own HTTP surface.
	ListenAddr string `yaml:"listen_addr"`

	// Site is the selected site label for records that carry none.
	Site string `yaml:"site"`

	// Capacity bounds the series buffer.
	Capacity int `yaml:"capacity"`

	// SnapshotLimit is how many recent readings the startup fetch requests.
	SnapshotLimit int `yaml:"snapshot_limit"`

	// FrameInterval is the refresh coalescing window.
	FrameInterval time.Duration `yaml:"frame_interval"`

	// AnalysisRows is how many recent readings are sent for analysis.
	AnalysisRows int `yaml:"analysis_rows"`

	// FollowServerThresholds refetches server thresholds whenever the
	// stream reports that they changed.
	FollowServerThresholds bool `yaml:"follow_server_thresholds"`

	// Thresholds are the local alert bounds. Edits are applied live.
	Thresholds types.Thresholds `yaml:"thresholds"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if cfg.Console.StreamURL == "" {
		cfg.Console.StreamURL = strings.TrimRight(cfg.Console.ServerURL, "/") + "/stream"
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Console: ConsoleConfig{
			ServerURL:     DefaultServerURL,
			ListenAddr:    DefaultListenAddr,
			Capacity:      DefaultCapacity,
			SnapshotLimit: DefaultSnapshotLimit,
			FrameInterval: DefaultFrameInterval,
			AnalysisRows:  DefaultAnalysisRows,
			Thresholds:    types.DefaultThresholds(),
		},
		LogLevel: DefaultLogLevel,
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	c := cfg.Console
	if err := checkURL("console.server_url", c.ServerURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("console.stream_url", c.StreamURL, "ws", "wss", "http", "https"); err != nil {
		return err
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("console.listen_addr is required")
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("console.capacity must be positive")
	}
	if c.SnapshotLimit <= 0 {
		return fmt.Errorf("console.snapshot_limit must be positive")
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("console.frame_interval must be positive")
	}
	if c.AnalysisRows <= 0 {
		return fmt.Errorf("console.analysis_rows must be positive")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("console.thresholds: %w", err)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func checkURL(key, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme %q not one of %s", key, u.Scheme, strings.Join(schemes, "|"))
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level: unknown level %q", s)
	}
}
