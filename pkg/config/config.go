// Package config holds the deposit-session configuration surface.
//
// A Config is immutable input: it is validated synchronously, before any
// network I/O, and never mutated by a running session.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
)

// Network selects which ledger network the session operates against.
type Network string

const (
	NetworkLive Network = "live"
	NetworkTest Network = "test"
)

type Config struct {
	// Network must be "live" or "test".
	Network Network `json:"network" env:"LUMENBRIDGE_NETWORK"`

	// BifrostURL is the base URL of the bridge service.
	BifrostURL string `json:"bifrost_url" env:"LUMENBRIDGE_BIFROST_URL"`

	// HorizonURL is the base URL of the ledger query/submission service.
	HorizonURL string `json:"horizon_url" env:"LUMENBRIDGE_HORIZON_URL"`

	// Seed is an optional pre-supplied secret seed. When empty, the session
	// generates a fresh keypair at start.
	Seed string `json:"seed,omitempty" env:"LUMENBRIDGE_SEED"`

	// RecoveryPublicKey, when set, is the account the deposit account is
	// merged into by the pre-staged recovery transaction.
	RecoveryPublicKey string `json:"recovery_public_key,omitempty" env:"LUMENBRIDGE_RECOVERY_PUBLIC_KEY"`

	// AllowHTTP permits plain-http bridge and horizon URLs. Off by default.
	AllowHTTP bool `json:"allow_http,omitempty" env:"LUMENBRIDGE_ALLOW_HTTP"`
}

func DefaultConfig() *Config {
	return &Config{
		Network: NetworkTest,
	}
}

// Validate checks every invariant the session relies on. It performs no I/O.
func (c *Config) Validate() error {
	if c.Network != NetworkLive && c.Network != NetworkTest {
		return fmt.Errorf("network must be %q or %q, got %q", NetworkLive, NetworkTest, c.Network)
	}
	if err := c.validateURL("bifrost_url", c.BifrostURL); err != nil {
		return err
	}
	if err := c.validateURL("horizon_url", c.HorizonURL); err != nil {
		return err
	}
	if c.Seed != "" {
		if _, err := keypair.ParseFull(c.Seed); err != nil {
			return fmt.Errorf("invalid seed: %w", err)
		}
	}
	if c.RecoveryPublicKey != "" && !strkey.IsValidEd25519PublicKey(c.RecoveryPublicKey) {
		return fmt.Errorf("invalid recovery public key %q", c.RecoveryPublicKey)
	}
	return nil
}

func (c *Config) validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !c.AllowHTTP {
			return fmt.Errorf("%s uses http but allow_http is not set", name)
		}
	default:
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host: %q", name, raw)
	}
	return nil
}

// NetworkPassphrase returns the ledger passphrase transactions are signed for.
func (c *Config) NetworkPassphrase() string {
	if c.Network == NetworkLive {
		return network.PublicNetworkPassphrase
	}
	return network.TestNetworkPassphrase
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lumenbridge", "config.json")
}

// Load reads a JSON config file, applies environment overrides, and
// validates the result. A missing file is not an error; defaults plus
// environment are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON. The file is 0600 because it may
// carry a secret seed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
