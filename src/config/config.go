package config

import (
	"fmt"
	"os"

	"stream-manager/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Default ports per transport, used when the configuration leaves them unset
const (
	DefaultServerPort    = 8080
	DefaultWebsocketPort = 8765
	DefaultFeedPort      = 6000
	DefaultFeedChannel   = "quotes"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills the fixed per-transport defaults for everything the
// YAML file left unset.
func (c *Config) applyDefaults() {
	if c.Manager.ServerPort == 0 {
		c.Manager.ServerPort = DefaultServerPort
	}
	if c.Manager.WebsocketPort == 0 {
		c.Manager.WebsocketPort = DefaultWebsocketPort
	}
	if c.Feed.Port == 0 {
		c.Feed.Port = DefaultFeedPort
	}
	if c.Feed.Channel == "" {
		c.Feed.Channel = DefaultFeedChannel
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "rsi"
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config name cannot be empty")
	}

	ports := map[string]int{
		"server":    c.Manager.ServerPort,
		"websocket": c.Manager.WebsocketPort,
		"feed":      c.Feed.Port,
	}
	for name, port := range ports {
		if port <= 1024 || port > 65535 {
			return fmt.Errorf("invalid %s port number: %d (must be between 1025 and 65535)", name, port)
		}
	}
	if c.Feed.Delay < 0 {
		return fmt.Errorf("feed delay cannot be negative")
	}

	if c.NATS != nil {
		if len(c.NATS.Servers) == 0 {
			return fmt.Errorf("NATS servers list cannot be empty when a publisher is configured")
		}
		if c.NATS.ClientID == "" {
			return fmt.Errorf("NATS client_id cannot be empty when a publisher is configured")
		}
	}

	return nil
}
