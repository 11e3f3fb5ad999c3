// Package config manages the on-disk configuration directory: engine
// settings, the registry file location and the audit log location.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aggrex/aggrex/internal/engine"
	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultEngineAddress = "0x00000000000000000000000000000000000aEE01"
	defaultMaxBatch      = 16
	defaultWhitelistMax  = 32

	configFile   = "config.json"
	registryFile = "registry.json"
	auditFile    = "audit.log"
)

// EnvDir overrides the configuration directory when set.
const EnvDir = "AGGREX_CONFIG_DIR"

// Config holds all engine and CLI configuration.
type Config struct {
	EngineAddress     string `json:"engine_address"`
	MaxPulls          int    `json:"max_pulls"`
	MaxApprovals      int    `json:"max_approvals"`
	MaxCalls          int    `json:"max_calls"`
	MaxFlushTokens    int    `json:"max_flush_tokens"`
	MaxWhitelistBatch int    `json:"max_whitelist_batch"`

	// internal: config dir path used for Save()
	configDir string
}

// Load reads config from dir (or creates defaults). An empty dir falls back
// to $AGGREX_CONFIG_DIR, then ~/.aggrex.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = os.Getenv(EnvDir)
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".aggrex")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.configDir = dir
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// RegistryPath returns the location of the registry file.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.configDir, registryFile)
}

// AuditPath returns the location of the audit log.
func (c *Config) AuditPath() string {
	return filepath.Join(c.configDir, auditFile)
}

// Limits converts the configured batch bounds to engine limits.
func (c *Config) Limits() engine.Limits {
	return engine.Limits{
		MaxPulls:       c.MaxPulls,
		MaxApprovals:   c.MaxApprovals,
		MaxCalls:       c.MaxCalls,
		MaxFlushTokens: c.MaxFlushTokens,
	}
}

// EngineAccount parses the configured engine custody address.
func (c *Config) EngineAccount() (common.Address, error) {
	if !common.IsHexAddress(c.EngineAddress) {
		return common.Address{}, fmt.Errorf("invalid engine address %q", c.EngineAddress)
	}
	return common.HexToAddress(c.EngineAddress), nil
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		EngineAddress:     defaultEngineAddress,
		MaxPulls:          defaultMaxBatch,
		MaxApprovals:      defaultMaxBatch,
		MaxCalls:          defaultMaxBatch,
		MaxFlushTokens:    defaultMaxBatch,
		MaxWhitelistBatch: defaultWhitelistMax,
		configDir:         dir,
	}
}
