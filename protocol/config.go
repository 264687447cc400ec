package protocol

import (
	"fmt"
	"os"
	"time"

	"github.com/flashbots/dicemix/crypto"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the parameters every peer of a mix must agree on, plus local
// limits.
type Config struct {
	// Field is a preset name (p61, p64, p127, p521) or a decimal prime.
	Field string `yaml:"field" json:"field"`

	// MessageSize is the exact byte length of every mixed message.
	MessageSize int `yaml:"message_size" json:"message_size"`

	// RoundTimeout bounds the wait for each broadcast phase.
	RoundTimeout time.Duration `yaml:"round_timeout" json:"round_timeout"`

	// KeyExchange selects the NIKE, secp256k1 or x25519.
	KeyExchange string `yaml:"key_exchange" json:"key_exchange"`

	// Version and Options are bound into every session ID.
	Version uint32 `yaml:"version" json:"version"`
	Options string `yaml:"options" json:"options"`

	// MaxMessagesPerPeer caps the message count a peer may declare.
	MaxMessagesPerPeer int `yaml:"max_messages_per_peer" json:"max_messages_per_peer"`

	// MaxRuns stops the loop after this many runs. Zero means no limit.
	MaxRuns int `yaml:"max_runs" json:"max_runs"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns the parameters used when a field is left unset.
func DefaultConfig() *Config {
	return &Config{
		Field:              "p127",
		MessageSize:        32,
		RoundTimeout:       10 * time.Second,
		KeyExchange:        crypto.Secp256k1NIKE{}.Name(),
		Version:            1,
		MaxMessagesPerPeer: 16,
		LogLevel:           "info",
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and resolves the field and key exchange.
func (c *Config) Validate() error {
	if _, err := crypto.FieldByName(c.Field); err != nil {
		return fmt.Errorf("%w: field: %w", ErrInput, err)
	}
	if _, err := crypto.NIKEByName(c.KeyExchange); err != nil {
		return fmt.Errorf("%w: %w", ErrInput, err)
	}
	if c.MessageSize <= 0 {
		return fmt.Errorf("%w: message size must be positive", ErrInput)
	}
	if c.RoundTimeout <= 0 {
		return fmt.Errorf("%w: round timeout must be positive", ErrInput)
	}
	if c.MaxMessagesPerPeer <= 0 {
		return fmt.Errorf("%w: max messages per peer must be positive", ErrInput)
	}
	if c.MaxRuns < 0 {
		return fmt.Errorf("%w: max runs must not be negative", ErrInput)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("%w: %w", ErrInput, err)
		}
	}
	return nil
}
