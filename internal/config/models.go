package config

import (
	"fmt"
	"time"
)

// ServerConfig represents the configuration for the frontend server
type ServerConfig struct {
	Frontend      string
	ListenAddress string
	MaxBodyBytes  int
}

// SourceConfig selects the content source
type SourceConfig struct {
	Type string
}

// BackendConfig represents the configuration for the webmail REST backend
type BackendConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	DefaultFolder  string
	MarkReadOnView bool
}

// FileConfig represents the configuration for the file source
type FileConfig struct {
	Dir string
}

// RenderConfig represents the sanitize and render settings
type RenderConfig struct {
	Strategy             string
	Locale               string
	MinHeight            int
	FallbackHeight       int
	SettleDelays         []time.Duration
	ViewportWidth        int
	MaxContentBytes      int
	BlockRemoteImages    bool
	TrustedSenderDomains []string
}

// CacheConfig represents the render cache settings
type CacheConfig struct {
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	MaxEntries       int
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		Frontend:      c.GetString("server.frontend"),
		ListenAddress: c.GetString("server.listen_address"),
		MaxBodyBytes:  c.GetInt("server.max_body_bytes"),
	}
}

// GetSource returns the content source selection
func (c *Config) GetSource() SourceConfig {
	return SourceConfig{
		Type: c.GetString("source.type"),
	}
}

// GetBackend returns the backend configuration
func (c *Config) GetBackend() (BackendConfig, error) {
	timeout, err := c.GetDuration("backend.timeout")
	if err != nil {
		return BackendConfig{}, err
	}
	return BackendConfig{
		BaseURL:        c.GetString("backend.base_url"),
		Token:          c.GetString("backend.token"),
		Timeout:        timeout,
		DefaultFolder:  c.GetString("backend.default_folder"),
		MarkReadOnView: c.GetBool("backend.mark_read_on_view"),
	}, nil
}

// GetFile returns the file source configuration
func (c *Config) GetFile() FileConfig {
	return FileConfig{
		Dir: c.GetString("file.dir"),
	}
}

// GetRender returns the render configuration
func (c *Config) GetRender() (RenderConfig, error) {
	delays, err := c.GetDurations("render.settle_delays")
	if err != nil {
		return RenderConfig{}, err
	}
	cfg := RenderConfig{
		Strategy:             c.GetString("render.strategy"),
		Locale:               c.GetString("render.locale"),
		MinHeight:            c.GetInt("render.min_height"),
		FallbackHeight:       c.GetInt("render.fallback_height"),
		SettleDelays:         delays,
		ViewportWidth:        c.GetInt("render.viewport_width"),
		MaxContentBytes:      c.GetInt("render.max_content_bytes"),
		BlockRemoteImages:    c.GetBool("render.block_remote_images"),
		TrustedSenderDomains: c.GetStringSlice("render.trusted_sender_domains"),
	}
	if cfg.MinHeight < 0 || cfg.FallbackHeight < 0 {
		return RenderConfig{}, fmt.Errorf("render heights must not be negative")
	}
	return cfg, nil
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		MaxEntries:       c.GetInt("cache.max_entries"),
	}, nil
}
