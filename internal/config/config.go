// Package config provides configuration loading for questboard.
//
// Configuration is read from an optional YAML file and QUESTBOARD_-prefixed
// environment variables, then defaults are applied and the result validated.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/questboard/internal/logging"
	"github.com/fyrsmithlabs/questboard/internal/telemetry"
)

// Config holds the complete questboard configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Logging    logging.Config   `koanf:"logging"`
	Telemetry  telemetry.Config `koanf:"telemetry"`
	NATS       NATSConfig       `koanf:"nats"`
	Channel    ChannelConfig    `koanf:"channel"`
	Completion CompletionConfig `koanf:"completion"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// NATSConfig controls domain event publication.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	// SubjectPrefix is the first token of every published subject.
	SubjectPrefix string `koanf:"subject_prefix"`
	// Embedded starts an in-process nats-server instead of dialing URL.
	Embedded bool `koanf:"embedded"`
}

// ChannelConfig controls the collaboration-channel adapter.
type ChannelConfig struct {
	Enabled        bool     `koanf:"enabled"`
	RequestTimeout Duration `koanf:"request_timeout"`
	RatePerSecond  float64  `koanf:"rate_per_second"`
	Burst          int      `koanf:"burst"`
}

// CompletionConfig tunes the best-effort completion steps.
type CompletionConfig struct {
	ParticipantTimeout Duration `koanf:"participant_timeout"`
	ChannelTimeout     Duration `koanf:"channel_timeout"`
	MaxParallel        int      `koanf:"max_parallel"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if c.NATS.Enabled && !c.NATS.Embedded && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if c.Channel.Enabled {
		if !c.NATS.Enabled {
			return errors.New("channel integration requires nats to be enabled")
		}
		if c.Channel.RatePerSecond <= 0 {
			return fmt.Errorf("channel.rate_per_second must be positive, got %v", c.Channel.RatePerSecond)
		}
		if c.Channel.Burst < 1 {
			return fmt.Errorf("channel.burst must be at least 1, got %d", c.Channel.Burst)
		}
	}
	if c.Completion.MaxParallel < 1 {
		return fmt.Errorf("completion.max_parallel must be at least 1, got %d", c.Completion.MaxParallel)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8420
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "~/.local/share/questboard/questboard.db"
	}

	logDefaults := logging.NewDefaultConfig()
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logDefaults.Format
	}
	if cfg.Logging.Sampling.Tick == 0 {
		cfg.Logging.Sampling = logDefaults.Sampling
	}
	if cfg.Logging.Fields == nil {
		cfg.Logging.Fields = logDefaults.Fields
	}

	telDefaults := telemetry.NewDefaultConfig()
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = telDefaults.Endpoint
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = telDefaults.Protocol
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = telDefaults.ServiceName
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = telDefaults.ServiceVersion
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = telDefaults.SampleRate
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = telDefaults.MetricsInterval
	}
	if cfg.Telemetry.ShutdownTimeout == 0 {
		cfg.Telemetry.ShutdownTimeout = telDefaults.ShutdownTimeout
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "questboard"
	}

	if cfg.Channel.RequestTimeout == 0 {
		cfg.Channel.RequestTimeout = Duration(3 * time.Second)
	}
	if cfg.Channel.RatePerSecond == 0 {
		cfg.Channel.RatePerSecond = 5
	}
	if cfg.Channel.Burst == 0 {
		cfg.Channel.Burst = 10
	}

	if cfg.Completion.ParticipantTimeout == 0 {
		cfg.Completion.ParticipantTimeout = Duration(5 * time.Second)
	}
	if cfg.Completion.ChannelTimeout == 0 {
		cfg.Completion.ChannelTimeout = Duration(3 * time.Second)
	}
	if cfg.Completion.MaxParallel == 0 {
		cfg.Completion.MaxParallel = 8
	}
}
