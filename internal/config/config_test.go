package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "globe.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" || cfg.Server.GRPCAddr != ":9090" {
		t.Fatalf("server addrs = %q %q", cfg.Server.HTTPAddr, cfg.Server.GRPCAddr)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("read timeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Globe.TileDeg != 1 || cfg.Globe.PointColor != "#FFFFFF" || !cfg.Globe.ShowLabels {
		t.Fatalf("globe defaults not applied: %+v", cfg.Globe)
	}
	if len(cfg.Globe.Pins) != 8 {
		t.Fatalf("default pins = %d, want 8", len(cfg.Globe.Pins))
	}
	if cfg.Workers.MaxConcurrent != 4 || cfg.Cache.Prefix != "globe:layers" || cfg.Cache.TTL != 24*time.Hour {
		t.Fatalf("workers/cache defaults = %+v %+v", cfg.Workers, cfg.Cache)
	}
	if cfg.Logging.Level != "info" || cfg.Tracing.ServiceName != "globe" {
		t.Fatalf("logging/tracing defaults = %+v %+v", cfg.Logging, cfg.Tracing)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":7000"
  read_timeout: 30s
globe:
  tile_deg: 2.5
  fill_color: "#00FF88"
  pins:
    - lon: 10
      lat: 20
      name: Office
      address: "Line 1\nLine 2"
      always_show: true
workers:
  timeout: 2s
cache:
  redis_addr: "localhost:6379"
`)
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":7000" || cfg.Server.ReadTimeout != 30*time.Second {
		t.Fatalf("server = %+v", cfg.Server)
	}
	// untouched keys keep their defaults
	if cfg.Server.GRPCAddr != ":9090" || cfg.Globe.PointColor != "#FFFFFF" {
		t.Fatalf("defaults lost: %+v", cfg.Server)
	}
	if cfg.Globe.TileDeg != 2.5 || cfg.Globe.FillColor != "#00FF88" {
		t.Fatalf("globe = %+v", cfg.Globe)
	}
	if len(cfg.Globe.Pins) != 1 {
		t.Fatalf("pins = %+v, want the file's single pin", cfg.Globe.Pins)
	}
	p := cfg.Globe.Pins[0]
	if p.Lon != 10 || p.Lat != 20 || p.Name != "Office" || !p.AlwaysShow || !strings.Contains(p.Address, "\n") {
		t.Fatalf("pin = %+v", p)
	}
	if cfg.Workers.Timeout != 2*time.Second || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Fatalf("workers/cache = %+v %+v", cfg.Workers, cfg.Cache)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "globe:\n  tile_deg: 2.5\n")
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("GLOBE_GLOBE__TILE_DEG", "0.5")
	t.Setenv("GLOBE_GLOBE__SHOW_LABELS", "false")
	t.Setenv("GLOBE_WORKERS__MAX_CONCURRENT", "1")
	t.Setenv("GLOBE_LOGGING__LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Globe.TileDeg != 0.5 || cfg.Globe.ShowLabels {
		t.Fatalf("globe = tile %v labels %v", cfg.Globe.TileDeg, cfg.Globe.ShowLabels)
	}
	if cfg.Workers.MaxConcurrent != 1 || cfg.Logging.Level != "debug" {
		t.Fatalf("workers %+v logging %+v", cfg.Workers, cfg.Logging)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative tile", "globe:\n  tile_deg: -1\n"},
		{"opacity", "globe:\n  fill_opacity: 1.5\n"},
		{"pin range", "globe:\n  pins:\n    - lon: 200\n      lat: 0\n"},
		{"rotation", "globe:\n  rotation: backwards\n"},
		{"workers", "workers:\n  max_concurrent: -2\n"},
		{"log format", "logging:\n  format: xml\n"},
		{"tracing exporter", "tracing:\n  enabled: true\n  exporter: zipkin\n"},
		{"tile presets", "server:\n  tile_presets: [2, 0]\n"},
		{"no listeners", "server:\n  http_addr: \"\"\n  grpc_addr: \"\"\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(ConfigPathEnvVar, writeConfig(t, tc.body))
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted %q", tc.body)
			}
		})
	}
}

func TestLoadTilePresets(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, writeConfig(t, "server:\n  tile_presets: [0.5, 2]\n"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Server.TilePresets) != 2 || cfg.Server.TilePresets[0] != 0.5 || cfg.Server.TilePresets[1] != 2 {
		t.Fatalf("tile presets = %v", cfg.Server.TilePresets)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, writeConfig(t, "server: [unterminated\n"))
	if _, err := Load(); err == nil {
		t.Fatalf("malformed YAML loaded")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"GLOBE_SERVER__HTTP_ADDR":  "server.http_addr",
		"GLOBE_GLOBE__POINT_COLOR": "globe.point_color",
		"GLOBE_CONFIG":             "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Fatalf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
