package binding

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix namespaces environment overrides (WIDGETBIND_RETRY_LIMIT...).
	EnvPrefix = "WIDGETBIND_"

	DefaultRetryLimit     = 3
	DefaultRetryBaseDelay = time.Second
	DefaultBaseInterval   = 33 * time.Millisecond
	DefaultEventBuffer    = 16
)

// Config holds the tunables of the binding engine.
type Config struct {
	// RetryLimit is the number of retries after a failure. Negative disables retries.
	RetryLimit     int           `yaml:"retry_limit" env:"RETRY_LIMIT" validate:"gte=-1"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY" validate:"gte=0"`
	// BaseInterval is the throttle interval in normal render mode.
	BaseInterval time.Duration `yaml:"base_interval" env:"BASE_INTERVAL" validate:"gte=0"`
	EventBuffer  int           `yaml:"event_buffer" env:"EVENT_BUFFER" validate:"gte=0"`
	Logging      LoggingConfig `yaml:"logging" envPrefix:"LOG_"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	cfg := Config{
		RetryLimit:     DefaultRetryLimit,
		RetryBaseDelay: DefaultRetryBaseDelay,
		BaseInterval:   DefaultBaseInterval,
		EventBuffer:    DefaultEventBuffer,
	}
	cfg.Logging.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.RetryLimit == 0 {
		c.RetryLimit = DefaultRetryLimit
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.BaseInterval <= 0 {
		c.BaseInterval = DefaultBaseInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	c.Logging.ApplyDefaults()
}

// retries returns the effective retry bound.
func (c Config) retries() int {
	if c.RetryLimit < 0 {
		return 0
	}
	return c.RetryLimit
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("binding: invalid config field %s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("binding: invalid config: %w", err)
	}
	return nil
}

// LoadConfig reads defaults, then the optional YAML file at path, then
// WIDGETBIND_* environment overrides, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec
		if err != nil {
			return Config{}, fmt.Errorf("binding: read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("binding: parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("binding: read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
