package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type AssetConfig struct {
	Symbol           string `yaml:"symbol"`
	Network          string `yaml:"network"`
	Chain            string `yaml:"chain"`
	MinConfirmations int    `yaml:"min_confirmations"`
	// IndexerURL is the chain indexer endpoint used by the deposit tracker.
	// Assets sharing a chain may repeat the same URL; the first one wins.
	IndexerURL string `yaml:"indexer_url,omitempty"`
}

type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets"`
}

func LoadAssetConfig(assetsFile string) ([]AssetConfig, error) {
	var assetsPath string
	if filepath.IsAbs(assetsFile) {
		assetsPath = assetsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		assetsPath = filepath.Join(wd, assetsFile)
	}

	data, err := os.ReadFile(assetsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	var config AssetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", assetsFile, err)
	}

	for i, asset := range config.Assets {
		if asset.Symbol == "" {
			return nil, fmt.Errorf("asset at index %d missing symbol", i)
		}
		if asset.Network == "" {
			return nil, fmt.Errorf("asset at index %d missing network", i)
		}
		if asset.Chain == "" {
			return nil, fmt.Errorf("asset at index %d missing chain", i)
		}
		if asset.MinConfirmations <= 0 {
			return nil, fmt.Errorf("asset %s must have positive min_confirmations", asset.Symbol)
		}
	}

	return config.Assets, nil
}

// MinConfirmationsBySymbol indexes the catalog's confirmation thresholds by
// asset symbol.
func MinConfirmationsBySymbol(assets []AssetConfig) map[string]int {
	thresholds := make(map[string]int, len(assets))
	for _, asset := range assets {
		thresholds[asset.Symbol] = asset.MinConfirmations
	}
	return thresholds
}
