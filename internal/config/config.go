package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/scenesync/internal/core/dispatch"
	"github.com/zeusync/scenesync/internal/core/observability/log"
)

// EnvPath names the environment variable consulted when Load gets no path.
const EnvPath = "SCENESYNC_CONFIG"

type Config struct {
	Log         LogConfig         `yaml:"log" json:"log"`
	Environment EnvironmentConfig `yaml:"environment" json:"environment"`
	Dispatch    DispatchConfig    `yaml:"dispatch" json:"dispatch"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

type EnvironmentConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
	// Reliable marks every flushed transaction for the reliable channel.
	Reliable bool `yaml:"reliable" json:"reliable"`
}

type DispatchConfig struct {
	Encoding    dispatch.Encoding    `yaml:"encoding" json:"encoding"`
	Compression dispatch.Compression `yaml:"compression" json:"compression"`
	Parallelism int                  `yaml:"parallelism" json:"parallelism"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" json:"listen_addr"`
	MetricsPath     string        `yaml:"metrics_path" json:"metrics_path"`
	WSPath          string        `yaml:"ws_path" json:"ws_path"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

func Default() Config {
	opts := dispatch.DefaultOptions()
	return Config{
		Log: LogConfig{Level: "info"},
		Environment: EnvironmentConfig{
			TickInterval: 50 * time.Millisecond,
			Reliable:     true,
		},
		Dispatch: DispatchConfig{
			Encoding:    opts.Encoding,
			Compression: opts.Compression,
			Parallelism: opts.Parallelism,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MetricsPath:     "/metrics",
			WSPath:          "/ws",
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path falls back to
// $SCENESYNC_CONFIG, and to the bare defaults when that is unset too.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}
	if c.Environment.TickInterval <= 0 {
		invalid("environment.tick_interval must be positive, got %s", c.Environment.TickInterval)
	}
	switch c.Dispatch.Encoding {
	case dispatch.EncodingBinary, dispatch.EncodingJSON:
	default:
		invalid("dispatch.encoding %q", c.Dispatch.Encoding)
	}
	switch c.Dispatch.Compression {
	case dispatch.CompressionNone, dispatch.CompressionZstd:
	default:
		invalid("dispatch.compression %q", c.Dispatch.Compression)
	}
	if c.Dispatch.Parallelism < 1 {
		invalid("dispatch.parallelism must be at least 1, got %d", c.Dispatch.Parallelism)
	}
	if c.Server.ListenAddr == "" {
		invalid("server.listen_addr is empty")
	}
	for name, p := range map[string]string{"server.metrics_path": c.Server.MetricsPath, "server.ws_path": c.Server.WSPath} {
		if !strings.HasPrefix(p, "/") {
			invalid("%s %q must start with /", name, p)
		}
	}
	if c.Server.MetricsPath == c.Server.WSPath {
		invalid("server.metrics_path and server.ws_path collide on %q", c.Server.WSPath)
	}
	return errors.Join(errs...)
}

// DispatchOptions converts the dispatch section.
func (c Config) DispatchOptions() dispatch.Options {
	return dispatch.Options{
		Encoding:    c.Dispatch.Encoding,
		Compression: c.Dispatch.Compression,
		Parallelism: c.Dispatch.Parallelism,
	}
}

// LogLevel returns the parsed log level, info when it does not parse.
func (c Config) LogLevel() log.Level {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}
