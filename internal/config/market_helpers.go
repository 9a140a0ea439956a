package config

import (
	"fmt"
	"path/filepath"

	"nof0-core/pkg/market"
)

// MustLoadMarket loads etc/market.yaml from the project root and panics on error.
func MustLoadMarket() *market.Config {
	root := MustProjectRoot()
	path := filepath.Join(root, "etc", "market.yaml")
	cfg, err := market.LoadConfig(path)
	if err != nil {
		panic(fmt.Errorf("load market config %s: %w", path, err))
	}
	return cfg
}
