// config.go - configuration management for the shielded wallet CLI
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	// Chain settings
	RPCEndpoint  string `json:"rpc_endpoint"`
	PoolAddress  string `json:"pool_address"`
	ChainTimeout int    `json:"chain_timeout_seconds"`

	// Base token (the pool's built-in shielded asset, used by the scanner)
	BaseTokenSymbol   string `json:"base_token_symbol"`
	BaseTokenAddress  string `json:"base_token_address"`
	BaseTokenDecimals int    `json:"base_token_decimals"`

	// File paths
	WalletDir string `json:"wallet_dir"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Scan
	ScanMaxWindow        uint64 `json:"scan_max_window"`
	ScanInitialLookback  uint64 `json:"scan_initial_lookback"`
	ScanMinIntervalSecs  int    `json:"scan_min_interval_seconds"`

	// Security
	EnableAudit  bool   `json:"enable_audit"`
	AuditLogPath string `json:"audit_log_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RPCEndpoint:         "http://127.0.0.1:8545",
		PoolAddress:         "0x0000000000000000000000000000000000000000",
		ChainTimeout:        10,
		BaseTokenSymbol:     "DOGE",
		BaseTokenAddress:    "0x0000000000000000000000000000000000000001",
		BaseTokenDecimals:   18,
		WalletDir:           "wallet-data",
		LogLevel:            "info",
		LogFile:             "wallet.log",
		ScanMaxWindow:       10_000,
		ScanInitialLookback: 1_000,
		ScanMinIntervalSecs: 5,
		EnableAudit:         true,
		AuditLogPath:        "audit.log",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc_endpoint must be set")
	}
	if c.PoolAddress == "" {
		return fmt.Errorf("pool_address must be set")
	}
	if c.ChainTimeout <= 0 {
		return fmt.Errorf("chain_timeout_seconds must be positive")
	}
	if c.ScanMaxWindow == 0 {
		return fmt.Errorf("scan_max_window must be positive")
	}
	if c.ScanMinIntervalSecs <= 0 {
		return fmt.Errorf("scan_min_interval_seconds must be positive")
	}
	return nil
}
