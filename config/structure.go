package config

import (
	"time"

	"github.com/gaborage/go-curling/httpclient"
	"github.com/gaborage/go-curling/logger"
)

// Config is the root configuration for applications using go-curling,
// loadable from YAML files and CURLING_-prefixed environment variables.
type Config struct {
	Client Client `koanf:"client"`
	Log    Log    `koanf:"log"`
}

// Client configures the HTTP client built from this configuration.
type Client struct {
	Timeout         time.Duration `koanf:"timeout" validate:"min=0"`
	UserAgent       string        `koanf:"useragent"`
	FollowRedirects bool          `koanf:"followredirects"`
	LogPayloads     bool          `koanf:"logpayloads"`
	MaxPayloadLog   int           `koanf:"maxpayloadlog" validate:"min=0"`
	Retry           Retry         `koanf:"retry"`
	RateLimit       RateLimit     `koanf:"ratelimit"`
}

// Retry configures the retry policy applied to every request unless a
// request carries its own policy.
type Retry struct {
	Count             int           `koanf:"count" validate:"min=0"`
	Strategy          string        `koanf:"strategy" validate:"omitempty,oneof=linear exponential"`
	BaseDelay         time.Duration `koanf:"basedelay" validate:"min=0"`
	MaxDelay          time.Duration `koanf:"maxdelay" validate:"min=0"`
	RetryableStatuses []int         `koanf:"retryablestatuses" validate:"dive,min=100,max=599"`
}

// RateLimit throttles outbound attempts client-wide when enabled.
type RateLimit struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps" validate:"min=0"`
	Burst   int     `koanf:"burst" validate:"min=0"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Pretty bool   `koanf:"pretty"`
}

// ToClientConfig maps the client section onto an httpclient.Config.
func (c *Client) ToClientConfig() *httpclient.Config {
	cfg := &httpclient.Config{
		Timeout:            c.Timeout,
		UserAgent:          c.UserAgent,
		FollowRedirects:    c.FollowRedirects,
		LogPayloads:        c.LogPayloads,
		MaxPayloadLogBytes: c.MaxPayloadLog,
		Retry: httpclient.RetryPolicy{
			Count:             c.Retry.Count,
			Strategy:          httpclient.BackoffStrategy(c.Retry.Strategy),
			BaseDelay:         c.Retry.BaseDelay,
			MaxDelay:          c.Retry.MaxDelay,
			RetryableStatuses: c.Retry.RetryableStatuses,
		},
	}
	if c.RateLimit.Enabled {
		cfg.RateLimitRPS = c.RateLimit.RPS
		cfg.RateLimitBurst = c.RateLimit.Burst
	}
	return cfg
}

// NewLogger builds the structured logger described by the log section.
func (l *Log) NewLogger() logger.Logger {
	return logger.New(l.Level, l.Pretty)
}

// ToClient builds a ready-to-use client from the configuration. A nil log
// falls back to a default info-level logger.
func (cfg *Config) ToClient(log logger.Logger) httpclient.Client {
	return httpclient.NewClientWithConfig(cfg.Client.ToClientConfig(), log)
}
