package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wamstack/wamstack/pkg/types"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
console:
  server_url: "http://wam.local:8080"
  stream_url: "ws://wam.local:8080/ws/stream"
  listen_addr: ":9000"
  site: plant-a
  capacity: 250
  frame_interval: 33ms
  follow_server_thresholds: true
  thresholds:
    tds_max: 400
log_level: debug
`
	cfg := loadFromString(t, yaml)
	c := cfg.Console

	if c.ServerURL != "http://wam.local:8080" {
		t.Errorf("server_url: got %q", c.ServerURL)
	}
	if c.StreamURL != "ws://wam.local:8080/ws/stream" {
		t.Errorf("stream_url: got %q", c.StreamURL)
	}
	if c.Site != "plant-a" || c.Capacity != 250 || c.FrameInterval != 33*time.Millisecond {
		t.Errorf("site/capacity/frame: got %q/%d/%v", c.Site, c.Capacity, c.FrameInterval)
	}
	if !c.FollowServerThresholds {
		t.Error("follow_server_thresholds: got false")
	}
	if c.Thresholds.TDSMax != 400 {
		t.Errorf("tds_max: got %v", c.Thresholds.TDSMax)
	}
	if c.Thresholds.PHLow != types.DefaultPHLow || c.Thresholds.IronMax != types.DefaultIronMax {
		t.Errorf("unset thresholds should keep defaults: %+v", c.Thresholds)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level: got %q", cfg.LogLevel)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "console: {}\n")
	c := cfg.Console

	if c.ServerURL != DefaultServerURL {
		t.Errorf("default server_url: got %q", c.ServerURL)
	}
	if c.StreamURL != DefaultServerURL+"/stream" {
		t.Errorf("derived stream_url: got %q", c.StreamURL)
	}
	if c.Capacity != DefaultCapacity {
		t.Errorf("default capacity: got %d, want %d", c.Capacity, DefaultCapacity)
	}
	if c.SnapshotLimit != DefaultSnapshotLimit {
		t.Errorf("default snapshot_limit: got %d, want %d", c.SnapshotLimit, DefaultSnapshotLimit)
	}
	if c.FrameInterval != DefaultFrameInterval {
		t.Errorf("default frame_interval: got %v, want %v", c.FrameInterval, DefaultFrameInterval)
	}
	if c.AnalysisRows != DefaultAnalysisRows {
		t.Errorf("default analysis_rows: got %d, want %d", c.AnalysisRows, DefaultAnalysisRows)
	}
	if c.Thresholds != types.DefaultThresholds() {
		t.Errorf("default thresholds: got %+v", c.Thresholds)
	}
}

func TestLoad_IgnoresServerSection(t *testing.T) {
	yaml := `
console:
  site: a
server:
  http_port: 8080
  storage:
    backend: badger
`
	if cfg := loadFromString(t, yaml); cfg.Console.Site != "a" {
		t.Errorf("site: got %q", cfg.Console.Site)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad stream scheme", "console:\n  stream_url: ftp://x/stream\n"},
		{"bad server scheme", "console:\n  server_url: ws://x\n"},
		{"zero capacity", "console:\n  capacity: 0\n"},
		{"negative frame", "console:\n  frame_interval: -1ms\n"},
		{"inverted ph", "console:\n  thresholds:\n    ph_low: 9\n    ph_high: 7\n"},
		{"bad log level", "log_level: loud\n"},
		{"bad yaml", "console: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q): got %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "console:\n  thresholds:\n    tds_max: 500\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	errc := make(chan error, 1)
	go func() { errc <- Watch(ctx, path, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)

	writeFile(t, path, "console: [\n") // invalid: skipped
	writeFile(t, path, "console:\n  thresholds:\n    tds_max: 350\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-got:
			if c.Console.Thresholds.TDSMax == 350 {
				cancel()
				if err := <-errc; err != nil {
					t.Errorf("Watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("no reload with the new thresholds")
		}
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)
	return Load(path)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
}
