package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nof0-core/pkg/confkit"
	"nof0-core/pkg/exchange"
)

// Config describes the operator-curated configured symbol set and the
// refresh cadences a Cache runs against. Symbols beyond this set are
// added by Cache.TrackHeldSymbol (market.SourcePosition); nothing
// removes them once the position closes.
type Config struct {
	Symbols           []string `yaml:"symbols"`
	Intervals         []string `yaml:"intervals"`
	PriceIntervalRaw  string   `yaml:"price_interval"`
	Ticker24hRaw      string   `yaml:"ticker24h_interval"`
	PriceInterval     time.Duration `yaml:"-"`
	Ticker24hInterval time.Duration `yaml:"-"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads market configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/market.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	for i, s := range c.Symbols {
		c.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if c.PriceIntervalRaw == "" {
		c.PriceInterval = 5 * time.Second
	} else {
		d, err := time.ParseDuration(c.PriceIntervalRaw)
		if err != nil {
			return fmt.Errorf("market config: invalid price_interval %q: %w", c.PriceIntervalRaw, err)
		}
		c.PriceInterval = d
	}
	if c.Ticker24hRaw == "" {
		c.Ticker24hInterval = 30 * time.Second
	} else {
		d, err := time.ParseDuration(c.Ticker24hRaw)
		if err != nil {
			return fmt.Errorf("market config: invalid ticker24h_interval %q: %w", c.Ticker24hRaw, err)
		}
		c.Ticker24hInterval = d
	}
	return nil
}

// Validate ensures the configured symbol set is non-empty; the refresh
// loops have nothing to do otherwise.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("market config: symbols cannot be empty")
	}
	if c.PriceInterval <= 0 {
		return fmt.Errorf("market config: price_interval must be positive")
	}
	if c.Ticker24hInterval <= 0 {
		return fmt.Errorf("market config: ticker24h_interval must be positive")
	}
	return nil
}

// intervals resolves the configured interval strings to exchange.Interval,
// falling back to Cache's own default set when none are configured.
func (c *Config) intervals() []exchange.Interval {
	if len(c.Intervals) == 0 {
		return nil
	}
	out := make([]exchange.Interval, 0, len(c.Intervals))
	for _, raw := range c.Intervals {
		out = append(out, exchange.Interval(strings.TrimSpace(raw)))
	}
	return out
}

// BuildCache constructs a Market Cache (C2) wired to adapter, configured
// with this Config's symbol set, refresh cadences and kline intervals.
func (c *Config) BuildCache(adapter exchange.Adapter) *Cache {
	opts := []Option{WithRefreshPeriods(c.PriceInterval, c.Ticker24hInterval)}
	if intervals := c.intervals(); len(intervals) > 0 {
		opts = append(opts, WithIntervals(intervals...))
	}
	return NewCache(adapter, c.Symbols, opts...)
}
