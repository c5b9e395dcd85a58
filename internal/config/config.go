// Package config loads the listener configuration from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recyclechain/indexer/internal/storage"
)

// Environment variables recognized by Load. The Infura key and contract
// address are the only required external configuration.
const (
	EnvInfuraKey       = "INFURA_KEY"
	EnvContractAddress = "CONTRACT_ADDRESS"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvWSURL           = "CHAIN_WS_URL"
)

// infuraWSURL is the provider endpoint the contract is deployed behind.
const infuraWSURL = "wss://polygon-amoy.infura.io/ws/v3/%s"

// ChainConfig holds provider and contract settings.
type ChainConfig struct {
	// WSURL overrides the Infura endpoint when set.
	WSURL string `yaml:"ws_url"`

	// InfuraKey is appended to the default endpoint; env-only.
	InfuraKey string `yaml:"-"`

	ContractAddress string `yaml:"contract_address"`

	DialTimeout   time.Duration `yaml:"dial_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// Config is the full listener configuration.
type Config struct {
	Chain    ChainConfig    `yaml:"chain"`
	DB       storage.Config `yaml:"db"`
	LogLevel string         `yaml:"log_level"`
}

// Load builds the configuration: defaults, then the optional YAML file,
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Chain: ChainConfig{
			DialTimeout:   30 * time.Second,
			MaxRetries:    3,
			RetryInterval: 5 * time.Second,
		},
		DB:       storage.DefaultConfig(),
		LogLevel: "info",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv(EnvInfuraKey); v != "" {
		cfg.Chain.InfuraKey = v
	}
	if v := os.Getenv(EnvContractAddress); v != "" {
		cfg.Chain.ContractAddress = v
	}
	if v := os.Getenv(EnvWSURL); v != "" {
		cfg.Chain.WSURL = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.DB.URL = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Chain.ContractAddress == "" {
		return errors.New("contract address is required (CONTRACT_ADDRESS)")
	}
	if c.Chain.WSURL == "" && c.Chain.InfuraKey == "" {
		return errors.New("a WebSocket URL or Infura key is required (INFURA_KEY)")
	}
	return nil
}

// ProviderURL returns the WebSocket endpoint to dial.
func (c *Config) ProviderURL() string {
	if c.Chain.WSURL != "" {
		return c.Chain.WSURL
	}
	return fmt.Sprintf(infuraWSURL, c.Chain.InfuraKey)
}
