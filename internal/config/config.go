package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. MAILVIEW_RENDER_LOCALE
const EnvPrefix = "MAILVIEW"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New loads config.yaml from the standard locations, falling back to defaults
func New() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mailview/")
	v.AddConfigPath("$HOME/.mailview")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromFile loads one explicit config file. A missing file is an error.
func NewFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func newViper() *viper.Viper {
	v := NewEmptyViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.frontend", "http")
	v.SetDefault("server.listen_address", "0.0.0.0:8088")
	v.SetDefault("server.max_body_bytes", 10<<20)

	// Content source defaults
	v.SetDefault("source.type", "backend")
	v.SetDefault("backend.base_url", "http://localhost:8001")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.default_folder", "all")
	v.SetDefault("backend.mark_read_on_view", false)
	v.SetDefault("file.dir", "./emails")

	// Render defaults
	v.SetDefault("render.strategy", "isolated")
	v.SetDefault("render.locale", "en")
	v.SetDefault("render.min_height", 100)
	v.SetDefault("render.fallback_height", 300)
	v.SetDefault("render.settle_delays", []string{"100ms", "500ms"})
	v.SetDefault("render.viewport_width", 640)
	v.SetDefault("render.max_content_bytes", 2<<20)
	v.SetDefault("render.block_remote_images", false)
	v.SetDefault("render.trusted_sender_domains", []string{})

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.cleanup_frequency", "1m")
	v.SetDefault("cache.max_entries", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration parses a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetDurations parses a list of durations
func (c *Config) GetDurations(key string) ([]time.Duration, error) {
	raw := c.GetStringSlice(key)
	out := make([]time.Duration, 0, len(raw))
	for _, s := range raw {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q in %s: %w", s, key, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Set overrides a value, e.g. from a command line flag
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
