package models

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// MDuration is a time.Duration that decodes from YAML either as a duration
// string ("250ms", "5s") or as raw nanoseconds.
type MDuration time.Duration

// -----------------------------------------------------------------------------

// UnmarshalYAML implements yaml.Unmarshaler
func (d *MDuration) UnmarshalYAML(value *yaml.Node) error {
	var asInt int64
	if err := value.Decode(&asInt); err == nil {
		*d = MDuration(asInt)
		return nil
	}

	var asString string
	if err := value.Decode(&asString); err != nil {
		return fmt.Errorf("invalid duration value: %s", value.Value)
	}
	parsed, err := time.ParseDuration(asString)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", asString, err)
	}
	*d = MDuration(parsed)
	return nil
}

// -----------------------------------------------------------------------------

// Duration converts to the standard representation
func (d MDuration) Duration() time.Duration {
	return time.Duration(d)
}

// -----------------------------------------------------------------------------

// MConfig is the root application configuration, loaded from YAML
type MConfig struct {
	Name     string          `yaml:"name"`
	Logger   MLoggerConfig   `yaml:"logger"`
	Manager  MManagerConfig  `yaml:"manager"`
	Feed     MFeedConfig     `yaml:"feed"`
	Strategy MStrategyConfig `yaml:"strategy"`
	NATS     *MNATSConfig    `yaml:"nats,omitempty"`
}

// -----------------------------------------------------------------------------

// MLoggerConfig controls the logging backend
type MLoggerConfig struct {
	Level      string `yaml:"level"`       // debug, info, warning, error
	OutputFile string `yaml:"output_file"` // empty: stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"` // rotation threshold
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// -----------------------------------------------------------------------------

// MManagerConfig selects which listeners a manager runs and on which ports.
// A zero port falls back to the transport default (HTTP 8080, websocket 8765).
type MManagerConfig struct {
	UseServer     bool `yaml:"use_server"`
	UseWebsocket  bool `yaml:"use_websocket"`
	ServerPort    int  `yaml:"server_port"`
	WebsocketPort int  `yaml:"websocket_port"`
}

// -----------------------------------------------------------------------------

// MFeedConfig configures the feed broadcaster and its update source
type MFeedConfig struct {
	Port       int       `yaml:"port"`     // default 6000
	Delay      MDuration `yaml:"delay"`    // inter-item delay for replay sources
	Endpoint   string    `yaml:"endpoint"` // upstream websocket feed, empty for replay
	Channel    string    `yaml:"channel"`  // push channel name, default "quotes"
	Serializer string    `yaml:"serializer"`
}

// -----------------------------------------------------------------------------

// MStrategyConfig selects and parameterizes the strategy implementation
type MStrategyConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// -----------------------------------------------------------------------------

// MNATSConfig configures the optional signal publisher. When absent, signal
// fan-out happens only over the push listener.
type MNATSConfig struct {
	Servers        []string  `yaml:"servers"`
	ClientID       string    `yaml:"client_id"`
	SubjectPrefix  string    `yaml:"subject_prefix"`
	ConnectTimeout MDuration `yaml:"connect_timeout"`
	ReconnectWait  MDuration `yaml:"reconnect_wait"`
	MaxReconnects  int       `yaml:"max_reconnects"`
	Serializer     string    `yaml:"serializer"`
}
