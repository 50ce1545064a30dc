package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }},
		{"empty storage", func(c *Config) { c.Storage.Path = "" }},
		{"nats url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }},
		{"channel rate", func(c *Config) {
			c.NATS.Enabled = true
			c.Channel.Enabled = true
			c.Channel.RatePerSecond = -1
		}},
		{"channel burst", func(c *Config) {
			c.NATS.Enabled = true
			c.Channel.Enabled = true
			c.Channel.Burst = 0
		}},
		{"max parallel", func(c *Config) { c.Completion.MaxParallel = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_EmbeddedNATSNeedsNoURL(t *testing.T) {
	cfg := Default()
	cfg.NATS.Enabled = true
	cfg.NATS.Embedded = true
	cfg.NATS.URL = ""
	assert.NoError(t, cfg.Validate())
}
