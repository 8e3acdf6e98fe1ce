// Package config loads the globe service configuration.
//
// Sources are layered lowest to highest priority:
//  1. built-in defaults
//  2. a YAML file (GLOBE_CONFIG, or config.yaml / config.yml in the
//     working directory)
//  3. GLOBE_-prefixed environment variables, with "__" separating
//     nested keys (GLOBE_SERVER__HTTP_ADDR -> server.http_addr)
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/internal/observability"
	"github.com/security-somanos/blockchain-center/model"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "GLOBE_"

// ConfigPathEnvVar names the variable holding an explicit config file path.
const ConfigPathEnvVar = "GLOBE_CONFIG"

// DefaultConfigPaths are searched in order when GLOBE_CONFIG is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/globe/config.yaml",
}

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig                `koanf:"server"`
	Globe   model.Options               `koanf:"globe"`
	Land    LandConfig                  `koanf:"land"`
	Workers WorkersConfig               `koanf:"workers"`
	Cache   CacheConfig                 `koanf:"cache"`
	Logging logging.Config              `koanf:"logging"`
	Tracing observability.TracingConfig `koanf:"tracing"`
}

// ServerConfig holds listener addresses and HTTP limits.
type ServerConfig struct {
	HTTPAddr        string        `koanf:"http_addr"`
	GRPCAddr        string        `koanf:"grpc_addr"`
	MetricsAddr     string        `koanf:"metrics_addr"` // empty serves /metrics on the HTTP listener
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	SnapshotWidth   int           `koanf:"snapshot_width"`
	SnapshotHeight  int           `koanf:"snapshot_height"`
	// TilePresets are the densities API clients may add to the layer
	// cache, besides globe.tile_deg.
	TilePresets []float64 `koanf:"tile_presets"`
}

// LandConfig selects the landmass dataset. An empty path uses the
// embedded 110m dataset.
type LandConfig struct {
	Path string `koanf:"path"`
}

// WorkersConfig bounds tessellation workers.
type WorkersConfig struct {
	MaxConcurrent int64         `koanf:"max_concurrent"` // 0 is unbounded
	Timeout       time.Duration `koanf:"timeout"`        // 0 waits for the caller's context
}

// CacheConfig configures the optional shared Redis tier of the layer
// cache. An empty RedisAddr keeps the cache in process.
type CacheConfig struct {
	RedisAddr string        `koanf:"redis_addr"`
	RedisDB   int           `koanf:"redis_db"`
	Prefix    string        `koanf:"prefix"`
	TTL       time.Duration `koanf:"ttl"`
	Warm      bool          `koanf:"warm"` // build the configured density at startup
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SnapshotWidth:   800,
			SnapshotHeight:  800,
		},
		Globe: model.DefaultOptions(),
		Workers: WorkersConfig{
			MaxConcurrent: 4,
		},
		Cache: CacheConfig{
			Prefix: "globe:layers",
			TTL:    24 * time.Hour,
			Warm:   true,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
		Tracing: observability.TracingConfig{
			ServiceName: "globe",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps GLOBE_SERVER__HTTP_ADDR to server.http_addr.
// Returning "" drops the variable.
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate checks value ranges across every section.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		return fmt.Errorf("at least one of server.http_addr and server.grpc_addr is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if c.Server.SnapshotWidth < 0 || c.Server.SnapshotHeight < 0 {
		return fmt.Errorf("snapshot size must not be negative, got %dx%d", c.Server.SnapshotWidth, c.Server.SnapshotHeight)
	}
	for _, d := range c.Server.TilePresets {
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return fmt.Errorf("server.tile_presets must be positive numbers, got %v", d)
		}
	}
	if err := c.Globe.Validate(); err != nil {
		return fmt.Errorf("globe: %w", err)
	}
	if c.Workers.MaxConcurrent < 0 {
		return fmt.Errorf("workers.max_concurrent must not be negative, got %d", c.Workers.MaxConcurrent)
	}
	if c.Workers.Timeout < 0 {
		return fmt.Errorf("workers.timeout must not be negative, got %v", c.Workers.Timeout)
	}
	if c.Cache.RedisDB < 0 {
		return fmt.Errorf("cache.redis_db must not be negative, got %d", c.Cache.RedisDB)
	}
	if c.Cache.RedisAddr != "" && c.Cache.Prefix == "" {
		return fmt.Errorf("cache.prefix is required when cache.redis_addr is set")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported logging.format %q", c.Logging.Format)
	}
	if c.Tracing.Enabled {
		switch strings.ToLower(c.Tracing.Exporter) {
		case "stdout", "otlp":
		default:
			return fmt.Errorf("unsupported tracing.exporter %q", c.Tracing.Exporter)
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing.sample_ratio must be within [0,1], got %v", c.Tracing.SampleRatio)
		}
	}
	return nil
}
