package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LedgerConfig selects the contract backend and its behavior.
type LedgerConfig struct {
	// Backend is "firefly" (default) or "chainmaker".
	Backend string `yaml:"backend"`

	// RequestTimeout bounds each middleware call ("30s").
	RequestTimeout string `yaml:"request_timeout"`

	// ChainMakerConfigPath points at the chainmaker client YAML, relative
	// to the config directory. Required when backend is "chainmaker".
	ChainMakerConfigPath string `yaml:"chainmaker_config"`
}

// LoadLedgerConfig loads ledger backend configuration from the specified YAML file path
func LoadLedgerConfig(path string) (*LedgerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger config file '%s': %w", path, err)
	}

	var cfg LedgerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse ledger YAML config file: %w", err)
	}

	if cfg.Backend == "chainmaker" && cfg.ChainMakerConfigPath == "" {
		return nil, fmt.Errorf("ledger backend 'chainmaker' requires chainmaker_config")
	}

	return &cfg, nil
}
