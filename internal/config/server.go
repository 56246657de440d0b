package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/BioHazard786/huddle/internal/relay"
)

// ServerConfig represents the relay server configuration
type ServerConfig struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Relay RelayConfig `yaml:"relay"`
	Log   LogConfig   `yaml:"log"`

	// AllowedOrigins restricts websocket upgrades by Origin header.
	// Empty allows every origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig represents HTTP server configuration
type HTTPConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// RelayConfig tunes the signaling hub
type RelayConfig struct {
	SendQueue         int           `yaml:"send_queue" validate:"gt=0"`
	NotifyUnavailable bool          `yaml:"notify_unavailable"`
	MessagesPerSecond float64       `yaml:"max_messages_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=0"`
	MaxMessageBytes   int64         `yaml:"max_message_bytes" validate:"gt=0"`
	PongWait          time.Duration `yaml:"pong_wait" validate:"gt=0"`
	WriteWait         time.Duration `yaml:"write_wait" validate:"gt=0"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// DefaultServer returns the configuration used when no file is given.
func DefaultServer() *ServerConfig {
	def := relay.DefaultOptions()
	return &ServerConfig{
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Relay: RelayConfig{
			SendQueue:         def.SendQueue,
			MessagesPerSecond: def.MessagesPerSecond,
			Burst:             def.Burst,
			MaxMessageBytes:   def.MaxMessageBytes,
			PongWait:          def.PongWait,
			WriteWait:         def.WriteWait,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadServer loads the relay configuration from an optional YAML file,
// then applies environment overrides and validates the result.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServer()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies environment overrides
func applyEnvironmentOverrides(cfg *ServerConfig) error {
	if addr := os.Getenv("HTTP_ADDRESS"); addr != "" {
		cfg.HTTP.Address = addr
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv("NOTIFY_UNAVAILABLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFY_UNAVAILABLE %q: %w", v, err)
		}
		cfg.Relay.NotifyUnavailable = b
	}

	if v := os.Getenv("MAX_MESSAGES_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_MESSAGES_PER_SECOND %q: %w", v, err)
		}
		cfg.Relay.MessagesPerSecond = f
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges.
func (c *ServerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}

// RelayOptions converts the relay section into hub options.
func (c *ServerConfig) RelayOptions() relay.Options {
	return relay.Options{
		SendQueue:         c.Relay.SendQueue,
		NotifyUnavailable: c.Relay.NotifyUnavailable,
		MessagesPerSecond: c.Relay.MessagesPerSecond,
		Burst:             c.Relay.Burst,
		MaxMessageBytes:   c.Relay.MaxMessageBytes,
		PongWait:          c.Relay.PongWait,
		WriteWait:         c.Relay.WriteWait,
	}
}
