package config

import (
	"fmt"
	"path/filepath"

	"nof0-core/pkg/exchange"
)

// MustLoadExchange loads etc/exchange.yaml from the project root and panics on error.
// It isolates exchange config to avoid requiring other sections (LLM, Market, etc.)
// when tests only need the exchange adapters.
func MustLoadExchange() *exchange.Config {
	root := MustProjectRoot()
	path := filepath.Join(root, "etc", "exchange.yaml")
	cfg, err := exchange.LoadConfig(path)
	if err != nil {
		panic(fmt.Errorf("load exchange config %s: %w", path, err))
	}
	return cfg
}

// MustBuildExchangeAdapters loads exchange config from the default path
// and builds adapter instances; returns the map and default adapter name.
func MustBuildExchangeAdapters() (map[string]exchange.Adapter, string) {
	cfg := MustLoadExchange()
	adapters, err := cfg.BuildProviders()
	if err != nil {
		panic(err)
	}
	return adapters, cfg.Default
}
