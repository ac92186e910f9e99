// Package config loads the service configuration from an optional YAML file
// and XRPLACE_* environment variables, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/xrplace/internal/core/observability/log"
	"github.com/zeusync/xrplace/internal/core/session"
)

const EnvPrefix = "XRPLACE_"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server  ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Log     LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Session session.Config `yaml:"session" envPrefix:"SESSION_"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
	MaxClients int    `yaml:"max_clients" env:"MAX_CLIENTS"`
	// Shards is the number of session registry shards.
	Shards int `yaml:"shards" env:"SHARDS"`

	ReadBufferSize  int   `yaml:"read_buffer_size" env:"READ_BUFFER_SIZE"`
	WriteBufferSize int   `yaml:"write_buffer_size" env:"WRITE_BUFFER_SIZE"`
	MaxMessageSize  int64 `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	// OutboxSize bounds queued outbound messages per connection.
	OutboxSize int `yaml:"outbox_size" env:"OUTBOX_SIZE"`

	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	PongTimeout     time.Duration `yaml:"pong_timeout" env:"PONG_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// AllowedOrigins limits browser origins; empty allows any.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

type LogConfig struct {
	Level log.Level `yaml:"level" env:"LEVEL"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8080",
			MaxClients:      1000,
			Shards:          16,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			MaxMessageSize:  64 * 1024,
			OutboxSize:      256,
			WriteTimeout:    5 * time.Second,
			PongTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:     LogConfig{Level: log.LevelInfo},
		Session: session.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	s := c.Server
	switch {
	case s.ListenAddr == "":
		return fmt.Errorf("%w: server.listen_addr is required", ErrInvalidConfig)
	case s.MaxClients <= 0:
		return fmt.Errorf("%w: server.max_clients must be positive", ErrInvalidConfig)
	case s.Shards <= 0:
		return fmt.Errorf("%w: server.shards must be positive", ErrInvalidConfig)
	case s.MaxMessageSize <= 0 || s.OutboxSize <= 0:
		return fmt.Errorf("%w: server message limits must be positive", ErrInvalidConfig)
	case s.WriteTimeout <= 0 || s.PongTimeout <= 0:
		return fmt.Errorf("%w: server timeouts must be positive", ErrInvalidConfig)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("%w: session: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads path (if non-empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := decodeYAML(f, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadYAML decodes r over the defaults without consulting the environment.
func LoadYAML(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields of cfg from XRPLACE_* variables.
func ApplyEnv(cfg *Config) error {
	return ApplyEnvFrom(cfg, nil)
}

// ApplyEnvFrom is ApplyEnv with an explicit environment; nil means the
// process environment.
func ApplyEnvFrom(cfg *Config, environment map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix, Environment: environment}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
