package market

import (
	"context"
	"sync"
	"time"

	"nof0-core/pkg/exchange"
)

const ringCapacity = 21 // MA20 plus one extra confirmed bar, per spec.

// Cache is the process-wide Market Cache (C2): a single-writer-per-row
// in-memory snapshot of configured-and-held symbols, refreshed by three
// independent loops and read by every decision cycle.
type Cache struct {
	adapter exchange.Adapter

	mu      sync.RWMutex
	quotes  map[string]*quoteRow
	klines  map[klineKey]*klineRing
	configured map[string]struct{}

	intervals []exchange.Interval

	inflight singleflightGuard

	priceEvery    time.Duration
	ticker24Every time.Duration
	klineJitter   time.Duration
}

type klineKey struct {
	symbol   string
	interval exchange.Interval
}

// quoteRow owns its own mutex so the PriceLoop and Ticker24hLoop can each
// update their half of the row without readers observing a torn mix of
// the two loops' writes.
type quoteRow struct {
	mu sync.RWMutex
	LiveQuote
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithIntervals overrides the set of kline intervals the KlineLoop tracks.
func WithIntervals(intervals ...exchange.Interval) Option {
	return func(c *Cache) {
		if len(intervals) > 0 {
			c.intervals = intervals
		}
	}
}

// WithRefreshPeriods overrides the PriceLoop/Ticker24hLoop cadences.
func WithRefreshPeriods(price, ticker24h time.Duration) Option {
	return func(c *Cache) {
		if price > 0 {
			c.priceEvery = price
		}
		if ticker24h > 0 {
			c.ticker24Every = ticker24h
		}
	}
}

// NewCache constructs a Market Cache over the given adapter and the
// operator-curated configured symbol set C.
func NewCache(adapter exchange.Adapter, configuredSymbols []string, opts ...Option) *Cache {
	c := &Cache{
		adapter:       adapter,
		quotes:        make(map[string]*quoteRow),
		klines:        make(map[klineKey]*klineRing),
		configured:    make(map[string]struct{}, len(configuredSymbols)),
		intervals:     []exchange.Interval{exchange.Interval5m, exchange.Interval1h, exchange.Interval4h, exchange.Interval1d},
		priceEvery:    5 * time.Second,
		ticker24Every: 30 * time.Second,
		klineJitter:   2 * time.Second,
	}
	for _, s := range configuredSymbols {
		c.configured[s] = struct{}{}
		c.ensureRow(s, SourceConfigured)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TrackHeldSymbol registers a symbol the caller currently holds a
// position in, so refresh loops poll it even if it is not in the
// configured set C. Idempotent.
func (c *Cache) TrackHeldSymbol(symbol string) {
	c.mu.RLock()
	_, ok := c.quotes[symbol]
	c.mu.RUnlock()
	if ok {
		return
	}
	c.ensureRow(symbol, SourcePosition)
}

func (c *Cache) ensureRow(symbol string, source Source) *quoteRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.quotes[symbol]
	if !ok {
		row = &quoteRow{LiveQuote: LiveQuote{Symbol: symbol, Source: source}}
		c.quotes[symbol] = row
	}
	return row
}

// trackedSymbols returns the current union of configured and held symbols.
func (c *Cache) trackedSymbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.quotes))
	for s := range c.quotes {
		out = append(out, s)
	}
	return out
}

// Run starts the three refresh loops and blocks until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); c.PriceLoop(ctx) }()
	go func() { defer wg.Done(); c.Ticker24hLoop(ctx) }()
	go func() { defer wg.Done(); c.KlineLoop(ctx) }()
	wg.Wait()
}
