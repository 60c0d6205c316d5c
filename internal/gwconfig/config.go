// Package gwconfig loads the notification gateway's configuration: a
// typed struct decoded from YAML, with environment variable overrides
// layered on afterward, and a fail-fast Validate pass run at startup.
package gwconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BusConfig configures the external message bus client.
type BusConfig struct {
	Bootstrap           []string `yaml:"bootstrap"`
	GroupID             string   `yaml:"groupId"`
	AutoOffsetReset     string   `yaml:"autoOffsetReset"`
	MaxPollRecords      int      `yaml:"maxPollRecords"`
	SessionTimeoutMs    int      `yaml:"sessionTimeoutMs"`
	HeartbeatIntervalMs int      `yaml:"heartbeatIntervalMs"`
	Topics              []string `yaml:"topics"`
	PollTimeoutMs       int      `yaml:"pollTimeoutMs"`
}

// Validate checks the bus section is usable.
func (c BusConfig) Validate() error {
	if len(c.Bootstrap) == 0 {
		return fmt.Errorf("bus.bootstrap: at least one broker address is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("bus.groupId is required")
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("bus.topics: at least one topic is required")
	}
	return nil
}

// ProviderConfig is one entry in an ordered channel provider list. The
// wiring code (cmd/gateway) dispatches on Name to build the concrete
// adapter, which pulls what it needs out of the generic Credentials map.
type ProviderConfig struct {
	Name        string            `yaml:"name"`
	Enabled     bool              `yaml:"enabled"`
	TimeoutMs   int               `yaml:"timeoutMs"`
	Credentials map[string]string `yaml:"credentials"`
}

// ChannelsConfig holds the ordered provider lists per channel.
type ChannelsConfig struct {
	Email struct {
		Providers []ProviderConfig `yaml:"providers"`
	} `yaml:"email"`
	SMS struct {
		Providers []ProviderConfig `yaml:"providers"`
	} `yaml:"sms"`
}

// RoutingConfig configures the force-both-on-severity routing rule.
type RoutingConfig struct {
	ForceBothOnSeverity []string `yaml:"forceBothOnSeverity"`
}

// ResolverConfig selects and configures the customer profile resolver.
type ResolverConfig struct {
	Type string `yaml:"type"`
	HTTP struct {
		BaseURL   string `yaml:"baseUrl"`
		TimeoutMs int    `yaml:"timeoutMs"`
	} `yaml:"http"`
}

// Validate checks the resolver section names a known implementation.
func (c ResolverConfig) Validate() error {
	switch c.Type {
	case "mock", "http":
		return nil
	default:
		return fmt.Errorf("resolver.type: must be 'mock' or 'http', got %q", c.Type)
	}
}

// RetryConfig configures the C2 retry executor and the exhausted-delivery
// policy.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"maxAttempts"`
	InitialDelayMs int     `yaml:"initialDelayMs"`
	BackoffFactor  float64 `yaml:"backoffFactor"`
	MaxDelayMs     int     `yaml:"maxDelayMs"`
	OnExhausted    string  `yaml:"onExhausted"`
	DLQTopic       string  `yaml:"dlqTopic"`
	// DLQPayload selects what the DLQ message body contains: "raw" (the
	// original record bytes, unchanged) or "reencoded" (the decoded
	// event re-serialized). Defaults to "raw" when empty.
	DLQPayload string `yaml:"dlqPayload"`
}

// Validate checks the retry section, including the DLQ-wiring rule from
// the design notes: onExhausted=kafka without a dlqTopic is rejected at
// startup rather than silently degrading.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts must be >= 1")
	}
	if c.BackoffFactor < 1.0 {
		return fmt.Errorf("retry.backoffFactor must be >= 1.0")
	}
	if c.MaxDelayMs < c.InitialDelayMs {
		return fmt.Errorf("retry.maxDelayMs must be >= retry.initialDelayMs")
	}
	switch c.OnExhausted {
	case "log":
	case "kafka":
		if c.DLQTopic == "" {
			return fmt.Errorf("retry.onExhausted=kafka requires retry.dlqTopic")
		}
	default:
		return fmt.Errorf("retry.onExhausted: must be 'log' or 'kafka', got %q", c.OnExhausted)
	}
	switch c.DLQPayload {
	case "", "raw", "reencoded":
	default:
		return fmt.Errorf("retry.dlqPayload: must be 'raw' or 'reencoded', got %q", c.DLQPayload)
	}
	return nil
}

// HealthConfig configures the liveness/readiness HTTP endpoint.
type HealthConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig configures the zap logging backend. Format is "json" or
// "console", mirroring internal/logger's Format enum directly instead of
// carrying a separate Development flag.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete gateway configuration surface.
type Config struct {
	Bus      BusConfig      `yaml:"bus"`
	Channels ChannelsConfig `yaml:"channels"`
	Routing  RoutingConfig  `yaml:"routing"`
	Resolver ResolverConfig `yaml:"resolver"`
	Retry    RetryConfig    `yaml:"retry"`
	Health   HealthConfig   `yaml:"health"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DefaultConfig is the baseline configuration: overridden by the loaded
// YAML file, overridden again by environment variables.
func DefaultConfig() Config {
	return Config{
		Bus: BusConfig{
			AutoOffsetReset:     "latest",
			MaxPollRecords:      500,
			SessionTimeoutMs:    10000,
			HeartbeatIntervalMs: 3000,
			PollTimeoutMs:       500,
		},
		Routing: RoutingConfig{ForceBothOnSeverity: []string{"HIGH", "CRITICAL"}},
		Resolver: ResolverConfig{Type: "mock"},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMs: 1000,
			BackoffFactor:  2.0,
			MaxDelayMs:     30000,
			OnExhausted:    "log",
		},
		Health:  HealthConfig{Port: "8080"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads YAML from path (if non-empty) over DefaultConfig, then
// applies GATEWAY_* environment variable overrides, then validates.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("gwconfig: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("gwconfig: failed to parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs every section's Validate and additionally fails fast if
// zero adapters ended up configured for both channels — the process
// surface's "non-zero exit if zero adapters are configured" rule.
func (c Config) Validate() error {
	if err := c.Bus.Validate(); err != nil {
		return err
	}
	if err := c.Resolver.Validate(); err != nil {
		return err
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}

	enabled := 0
	for _, p := range c.Channels.Email.Providers {
		if p.Enabled {
			enabled++
		}
	}
	for _, p := range c.Channels.SMS.Providers {
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("gwconfig: zero adapters configured across channels.email and channels.sms")
	}
	return nil
}

// applyEnvOverrides layers GATEWAY_* environment variables over the
// decoded config. Only the settings an operator commonly needs to flip
// without a redeploy are covered: broker list, group id, health port,
// and log level.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GATEWAY_BUS_BOOTSTRAP"); v != "" {
		cfg.Bus.Bootstrap = strings.Split(v, ",")
	}
	if v := os.Getenv("GATEWAY_BUS_GROUP_ID"); v != "" {
		cfg.Bus.GroupID = v
	}
	if v := os.Getenv("GATEWAY_HEALTH_PORT"); v != "" {
		cfg.Health.Port = v
	}
	if v := os.Getenv("GATEWAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Durations converts the millisecond-based YAML fields into the
// time.Duration-based shape the retry executor takes.
func (c RetryConfig) Durations() (initial, max time.Duration) {
	return time.Duration(c.InitialDelayMs) * time.Millisecond, time.Duration(c.MaxDelayMs) * time.Millisecond
}

// ParseBool is a small helper for providers whose Credentials map encodes
// booleans as strings (e.g. "useTls": "true").
func ParseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
