// Package common provides shared utilities for the service CLI
// commands: YAML configuration loading, structured logger setup, and
// issuer key handling.
package common

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PinkeshGjr/PIRService/privacypass"
)

// Config is the service configuration shared by the binaries. Every
// field can also be set through flags; flags win over the file.
type Config struct {
	// ListenAddr is the query API listen address.
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is the metrics listen address; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// GenerationDir is where the encoder publishes generation files.
	GenerationDir string `yaml:"generation_dir"`

	// QueryTimeout bounds one query end to end.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// MaxWorkers bounds concurrent evaluations; zero means one per CPU.
	MaxWorkers int `yaml:"max_workers"`

	// IssuerKeys lists trusted issuer public keys, hex encoded.
	IssuerKeys []string `yaml:"issuer_keys"`

	// OpenMode disables token verification. It must be set explicitly.
	OpenMode bool `yaml:"open_mode"`

	// TokenTTL bounds spent-token retention.
	TokenTTL time.Duration `yaml:"token_ttl"`

	DrainDuration time.Duration `yaml:"drain_duration"`

	LogJSON     bool `yaml:"log_json"`
	LogDebug    bool `yaml:"log_debug"`
	EnablePprof bool `yaml:"pprof"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:    ":8080",
		GenerationDir: "generations",
		QueryTimeout:  30 * time.Second,
		TokenTTL:      privacypass.DefaultTokenTTL,
		DrainDuration: 5 * time.Second,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger.
func NewLogger(json, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// LoadOrGenerateIssuerKey loads an Ed25519 signing key from a hex
// string, or generates a new key pair if hexKey is empty.
func LoadOrGenerateIssuerKey(hexKey string) (privacypass.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return privacypass.PrivateKey(keyBytes), nil
	}
	_, privKey, err := privacypass.GenerateKeyPair()
	return privKey, err
}

// BuildVerifier constructs the token verifier from configuration. An
// empty key list without explicit open mode is a fatal configuration
// error.
func BuildVerifier(cfg *Config, log *slog.Logger) (*privacypass.Verifier, error) {
	keys := make(map[string]privacypass.PublicKey, len(cfg.IssuerKeys))
	for _, hexKey := range cfg.IssuerKeys {
		pk, err := privacypass.NewPublicKeyFromString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("issuer key %q: %w", hexKey, err)
		}
		keys[pk.KeyID()] = pk
	}
	return privacypass.NewVerifier(privacypass.VerifierConfig{
		Keys:     keys,
		Open:     cfg.OpenMode,
		TokenTTL: cfg.TokenTTL,
		Log:      log,
	})
}
