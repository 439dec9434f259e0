package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultConfigFile is the YAML file Load looks for in the working directory.
	DefaultConfigFile = "config.yaml"

	// envPrefix namespaces the environment variables read during loading.
	// CURLING_CLIENT_RETRY_COUNT maps to client.retry.count.
	envPrefix = "CURLING_"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml in the working directory
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadFromFile(DefaultConfigFile)
}

// LoadFromFile is Load with an explicit YAML path. The file is optional:
// defaults and environment variables still apply when it does not exist.
// Any other file error, including malformed YAML, fails the load.
func LoadFromFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := loadEnv(k); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return finalize(k)
}

// LoadFromBytes loads configuration from an in-memory YAML document layered
// over the defaults, with environment variables still applied on top. Useful
// for embedded configurations and tests.
func LoadFromBytes(b []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(rawbytes.Provider(b), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config bytes: %w", err)
	}

	if err := loadEnv(k); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return finalize(k)
}

func finalize(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// envListKeys are the dotted keys holding lists. Their environment values
// are comma-separated, e.g. CURLING_CLIENT_RETRY_RETRYABLESTATUSES=502,503.
var envListKeys = map[string]bool{
	"client.retry.retryablestatuses": true,
}

func loadEnv(k *koanf.Koanf) error {
	return k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// CURLING_CLIENT_TIMEOUT -> client.timeout
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".")
			if envListKeys[key] {
				parts := strings.Split(value, ",")
				for i := range parts {
					parts[i] = strings.TrimSpace(parts[i])
				}
				return key, parts
			}
			return key, value
		},
	}), nil)
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"client.timeout":                 "30s",
		"client.useragent":               "",
		"client.followredirects":         true,
		"client.logpayloads":             false,
		"client.maxpayloadlog":           1024,
		"client.retry.count":             0,
		"client.retry.strategy":          "exponential",
		"client.retry.basedelay":         "1s",
		"client.retry.maxdelay":          "30s",
		"client.retry.retryablestatuses": []int{502, 503, 504},
		"client.ratelimit.enabled":       false,
		"client.ratelimit.rps":           0,
		"client.ratelimit.burst":         0,

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
