package exchange_test

import (
	"os"
	"path/filepath"
	"testing"

	exchange "nof0-core/pkg/exchange"
)

const testPrivateKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a741b52d7c5d5095e2f"

func TestLoadConfigAndBuildProviders(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("EXCHANGE_PRIVATE_KEY", testPrivateKey)
	t.Cleanup(func() {
		os.Unsetenv("EXCHANGE_PRIVATE_KEY")
	})

	configYAML := `
default: main
providers:
  main:
    type: rest
    base_url: https://api.example.com
    private_key: ${EXCHANGE_PRIVATE_KEY}
    chain_id: 421614
    timeout: 45s
`
	path := filepath.Join(dir, "exchange.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := exchange.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Default != "main" {
		t.Fatalf("unexpected default: %s", cfg.Default)
	}

	providers, err := cfg.BuildProviders()
	if err != nil {
		t.Fatalf("BuildProviders error: %v", err)
	}
	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	if _, ok := providers["main"]; !ok {
		t.Fatalf("provider map missing main")
	}
}

func TestLoadConfigRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	configYAML := `
providers:
  main:
    type: does_not_exist
`
	path := filepath.Join(dir, "exchange.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := exchange.LoadConfig(path)
	if err == nil {
		t.Fatalf("expected error for unsupported provider type")
	}
}
