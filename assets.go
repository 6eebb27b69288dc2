package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ghost-labs/tradenode/pkg/stacks"
)

const assetsFileName = "assets.yaml"

// AssetsConfig is the root structure of assets.yaml. Each asset carries the
// unit scaling applied at display boundaries and, for contract-backed
// assets, the token contract per network.
type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets"`
}

// AssetConfig describes one asset the node can move or display.
type AssetConfig struct {
	// Symbol is the ticker ("STX", "sBTC"). Required for enabled assets.
	Symbol string `yaml:"symbol"`
	// Name is the human-readable name; defaults to Symbol.
	Name string `yaml:"name"`
	// Decimals is the smallest-unit scale (STX: 6, sBTC: 8).
	Decimals int32 `yaml:"decimals"`
	// Native marks the chain's own token (no contract).
	Native bool `yaml:"native"`
	// Disabled excludes the asset from processing.
	Disabled bool `yaml:"disabled"`
	// Contracts maps a network selector to the token contract principal.
	Contracts map[string]string `yaml:"contracts"`
}

// LoadAssets reads and validates <configDirPath>/assets.yaml.
func LoadAssets(configDirPath string) (AssetsConfig, error) {
	f, err := os.Open(filepath.Join(configDirPath, assetsFileName))
	if err != nil {
		return AssetsConfig{}, err
	}
	defer f.Close()

	var cfg AssetsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return AssetsConfig{}, err
	}
	if err := cfg.verifyVariables(); err != nil {
		return AssetsConfig{}, err
	}
	return cfg, nil
}

// verifyVariables applies defaults and rejects unusable entries.
func (cfg *AssetsConfig) verifyVariables() error {
	for i, asset := range cfg.Assets {
		if asset.Disabled {
			continue
		}
		if asset.Symbol == "" {
			return fmt.Errorf("missing asset symbol for asset[%d]", i)
		}
		if asset.Name == "" {
			cfg.Assets[i].Name = asset.Symbol
		}
		if asset.Decimals <= 0 {
			return fmt.Errorf("asset %s must declare positive decimals", asset.Symbol)
		}
		if !asset.Native && len(asset.Contracts) == 0 {
			return fmt.Errorf("non-native asset %s must declare token contracts", asset.Symbol)
		}
		for network, contract := range asset.Contracts {
			if _, err := stacks.ParseNetwork(network); err != nil {
				return fmt.Errorf("asset %s: %w", asset.Symbol, err)
			}
			if _, err := stacks.ParseContractPrincipal(contract); err != nil {
				return fmt.Errorf("asset %s contract on %s: %w", asset.Symbol, network, err)
			}
		}
	}
	return nil
}

// GetBySymbol looks up an enabled asset, case-insensitively.
func (cfg AssetsConfig) GetBySymbol(symbol string) (AssetConfig, bool) {
	for _, asset := range cfg.Assets {
		if !asset.Disabled && strings.EqualFold(asset.Symbol, symbol) {
			return asset, true
		}
	}
	return AssetConfig{}, false
}

// DecimalsFor returns an enabled asset's smallest-unit scale, or the
// fallback when the symbol is unknown.
func (cfg AssetsConfig) DecimalsFor(symbol string, fallback int32) int32 {
	if asset, ok := cfg.GetBySymbol(symbol); ok {
		return asset.Decimals
	}
	return fallback
}

// ContractFor resolves a non-native asset's token contract on a network.
func (cfg AssetsConfig) ContractFor(symbol string, network stacks.Network) (stacks.ContractPrincipal, error) {
	asset, ok := cfg.GetBySymbol(symbol)
	if !ok {
		return stacks.ContractPrincipal{}, fmt.Errorf("unknown asset %q", symbol)
	}
	contract, ok := asset.Contracts[string(network)]
	if !ok {
		return stacks.ContractPrincipal{}, fmt.Errorf("asset %s has no contract on %s", symbol, network)
	}
	return stacks.ParseContractPrincipal(contract)
}
