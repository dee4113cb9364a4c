package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/oks-citadel/svcauth/internal/audit"
	"github.com/oks-citadel/svcauth/internal/auth"
	"github.com/oks-citadel/svcauth/internal/config"
	"github.com/oks-citadel/svcauth/internal/core"
	"github.com/oks-citadel/svcauth/internal/token"
	"github.com/oks-citadel/svcauth/pkg/client"
)

// Factory builds the runtime components from the configuration.
type Factory struct {
	// ConfigPath is the service configuration file, empty for env-only setups.
	ConfigPath string

	cfg *config.Config
}

func NewFactory() *Factory {
	return &Factory{}
}

// LoadConfig reads the config file, applies environment and flag overrides
// and validates the result. The config is loaded once per process.
func (f *Factory) LoadConfig() (*config.Config, error) {
	if f.cfg != nil {
		return f.cfg, nil
	}

	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(viper.AllSettings()); err != nil {
		return nil, err
	}
	if err := cfg.ApplyPeerList(viper.GetStringSlice(PeerListKey)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	f.cfg = cfg
	return cfg, nil
}

func (f *Factory) tokenOptions(cfg *config.Config) []token.Option {
	return []token.Option{
		token.WithTTL(cfg.Auth.TokenTTL),
		token.WithIssuerName(cfg.Auth.Issuer),
		token.WithLeeway(cfg.Auth.Leeway),
	}
}

func (f *Factory) Issuer(cfg *config.Config) (*token.Issuer, error) {
	signer, err := token.NewHMACSigner(cfg.Auth.SigningSecret)
	if err != nil {
		return nil, err
	}
	return token.NewIssuer(signer, f.tokenOptions(cfg)...), nil
}

func (f *Factory) TokenVerifier(cfg *config.Config) (*token.Verifier, error) {
	signer, err := token.NewHMACSigner(cfg.Auth.SigningSecret)
	if err != nil {
		return nil, err
	}
	return token.NewVerifier(signer, f.tokenOptions(cfg)...), nil
}

// Authenticator verifies inbound credentials: signed tokens first, then the
// shared API key if one is configured.
func (f *Factory) Authenticator(cfg *config.Config) (*auth.Verifier, error) {
	tokens, err := f.TokenVerifier(cfg)
	if err != nil {
		return nil, err
	}
	var opts []auth.Option
	if cfg.Auth.APIKey != "" {
		opts = append(opts, auth.WithAPIKey(cfg.Auth.APIKey))
	}
	return auth.NewVerifier(tokens, opts...), nil
}

func (f *Factory) Auditor(cfg *config.Config) (core.Auditor, error) {
	return audit.New(cfg.Audit)
}

// Peers builds one resilient client per configured peer, all calling as
// this service.
func (f *Factory) Peers(cfg *config.Config) (*client.Registry, error) {
	issuer, err := f.Issuer(cfg)
	if err != nil {
		return nil, err
	}

	reg := client.NewRegistry(
		client.WithCallerService(cfg.Service.Name),
		client.WithTokenIssuer(issuer),
		client.WithTimeout(cfg.Client.Timeout),
		client.WithRetryPolicy(client.RetryPolicy{
			MaxAttempts: cfg.Client.Retry.MaxAttempts,
			BaseDelay:   cfg.Client.Retry.BaseDelay,
		}),
	)
	for name, peer := range cfg.Peers {
		reg.Register(client.Peer{
			Name:    name,
			BaseURL: peer.URL,
			Timeout: peer.Timeout,
		})
		log.Debug().Str("peer", name).Str("url", peer.URL).Msg("registered peer")
	}
	return reg, nil
}

// PeerClient returns the client of a single configured peer.
func (f *Factory) PeerClient(name string) (*client.Client, error) {
	cfg, err := f.LoadConfig()
	if err != nil {
		return nil, err
	}
	peers, err := f.Peers(cfg)
	if err != nil {
		return nil, err
	}
	return peers.Get(name)
}
