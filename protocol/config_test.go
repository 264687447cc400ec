package protocol

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicemix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
field: p61
message_size: 64
round_timeout: 3s
key_exchange: x25519
options: testnet
max_runs: 5
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "p61", cfg.Field)
	require.Equal(t, 64, cfg.MessageSize)
	require.Equal(t, 3*time.Second, cfg.RoundTimeout)
	require.Equal(t, "x25519", cfg.KeyExchange)
	require.Equal(t, "testnet", cfg.Options)
	require.Equal(t, 5, cfg.MaxRuns)

	// Unset keys keep their defaults.
	require.Equal(t, uint32(1), cfg.Version)
	require.Equal(t, 16, cfg.MaxMessagesPerPeer)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("message_size: -1\n"), 0o600))
	_, err = LoadConfig(path)
	require.ErrorIs(t, err, ErrInput)
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"composite field":  func(c *Config) { c.Field = "15" },
		"unknown field":    func(c *Config) { c.Field = "p9000" },
		"unknown nike":     func(c *Config) { c.KeyExchange = "rsa" },
		"zero size":        func(c *Config) { c.MessageSize = 0 },
		"zero timeout":     func(c *Config) { c.RoundTimeout = 0 },
		"zero messages":    func(c *Config) { c.MaxMessagesPerPeer = 0 },
		"negative runs":    func(c *Config) { c.MaxRuns = -1 },
		"unknown loglevel": func(c *Config) { c.LogLevel = "loud" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInput)
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}
