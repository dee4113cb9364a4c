package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/mitchellh/mapstructure"

	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/validation"
)

// ErrMissingSigningSecret is a fatal configuration failure surfaced at startup.
var ErrMissingSigningSecret = errors.New("auth.signing_secret is required")

const (
	DefaultTimeout          = 10 * time.Second
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = 500 * time.Millisecond
	DefaultTokenTTL         = 15 * time.Minute
)

// Config is loaded once at process start and treated as read-only afterwards.
type Config struct {
	Service   ServiceConfig         `yaml:"service" mapstructure:"service"`
	Auth      AuthConfig            `yaml:"auth" mapstructure:"auth"`
	Client    ClientConfig          `yaml:"client" mapstructure:"client"`
	Peers     map[string]PeerConfig `yaml:"peers" mapstructure:"peers"`
	Endpoints []core.EndpointRule   `yaml:"endpoints" mapstructure:"-"`
	Audit     AuditConfig           `yaml:"audit" mapstructure:"audit"`
}

type ServiceConfig struct {
	// Name is the identity this process asserts when calling peers.
	Name string `yaml:"name" mapstructure:"name"`
}

// AuthConfig holds the process-wide credentials shared between services.
type AuthConfig struct {
	SigningSecret string        `yaml:"signing_secret" mapstructure:"signing_secret"`
	APIKey        string        `yaml:"api_key" mapstructure:"api_key"`
	TokenTTL      time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`

	// Issuer is set as "iss" on issued tokens and required on verification.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`

	// Leeway tolerates clock skew when checking token time claims.
	Leeway time.Duration `yaml:"leeway" mapstructure:"leeway"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
}

// ClientConfig holds the defaults of the resilient client.
type ClientConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
}

// PeerConfig overrides settings for a single target service.
type PeerConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AuditConfig holds configuration for auditing checkpoint decisions.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Type     string `yaml:"type" mapstructure:"type"` // e.g., "file", "memory"
	Path     string `yaml:"path" mapstructure:"path"`
	Capacity int    `yaml:"capacity" mapstructure:"capacity"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenTTL: DefaultTokenTTL,
		},
		Client: ClientConfig{
			Timeout: DefaultTimeout,
			Retry: RetryConfig{
				MaxAttempts: DefaultRetryMaxAttempts,
				BaseDelay:   DefaultRetryBaseDelay,
			},
		},
		Peers: map[string]PeerConfig{},
		Audit: AuditConfig{
			Enabled: true,
			Type:    "memory",
		},
	}
}

// Load reads and parses the configuration file at the given path on top of
// the defaults. It does not validate, because environment overrides are
// usually applied afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Peers == nil {
		cfg.Peers = map[string]PeerConfig{}
	}
	return cfg, nil
}

// ApplyOverrides decodes flat settings (as produced by viper) onto the config.
// Only keys present in settings are changed.
func (c *Config) ApplyOverrides(settings map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("creating config decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return fmt.Errorf("decoding config overrides: %w", err)
	}
	return nil
}

// ApplyPeerList merges "name=url" entries into the peer table.
func (c *Config) ApplyPeerList(entries []string) error {
	for _, entry := range entries {
		name, rawURL, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid peer '%s', expected name=url", entry)
		}
		peer := c.Peers[name]
		peer.URL = strings.TrimSpace(rawURL)
		c.Peers[name] = peer
	}
	return nil
}

// Peer returns the configuration of the named target service.
func (c *Config) Peer(name string) (PeerConfig, bool) {
	peer, ok := c.Peers[name]
	return peer, ok
}

func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if c.Auth.SigningSecret == "" {
		return ErrMissingSigningSecret
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive")
	}
	if c.Client.Retry.MaxAttempts < 1 {
		return fmt.Errorf("client.retry.max_attempts must be at least 1")
	}
	if c.Client.Retry.BaseDelay < 0 {
		return fmt.Errorf("client.retry.base_delay must not be negative")
	}

	for name, peer := range c.Peers {
		if peer.URL == "" {
			return fmt.Errorf("peer '%s' has no url", name)
		}
		u, err := url.Parse(peer.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("peer '%s' has an invalid url '%s'", name, peer.URL)
		}
	}

	validEndpoints, err := validation.ValidateEndpoints(c.Endpoints)
	if err != nil {
		return fmt.Errorf("validating endpoints: %w", err)
	}
	c.Endpoints = validEndpoints

	if c.Audit.Enabled && c.Audit.Type == "file" && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required for file auditing")
	}

	return nil
}
