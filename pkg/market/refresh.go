package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-core/pkg/exchange"
)

// singleflightGuard enforces at most one in-flight request per
// (symbol, operation), generalizing the teacher's single symbolsMu
// refresh guard to an arbitrary operation key. If a prior request for
// the same key has not returned by the next tick, the tick is skipped
// for that key.
type singleflightGuard struct {
	mu sync.Mutex
	inflight map[string]bool
}

func (g *singleflightGuard) tryStart(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight == nil {
		g.inflight = make(map[string]bool)
	}
	if g.inflight[key] {
		return false
	}
	g.inflight[key] = true
	return true
}

func (g *singleflightGuard) finish(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
}

// PriceLoop refreshes LiveQuote.price for every tracked symbol every
// priceEvery interval.
func (c *Cache) PriceLoop(ctx context.Context) {
	ticker := time.NewTicker(c.priceEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshPrices(ctx)
		}
	}
}

func (c *Cache) refreshPrices(ctx context.Context) {
	for _, symbol := range c.trackedSymbols() {
		key := "price:" + symbol
		if !c.inflight.tryStart(key) {
			logx.Infof("market: skipping price refresh for %s, prior request still in flight", symbol)
			continue
		}
		go func(symbol string) {
			defer c.inflight.finish(key)
			tick, err := c.adapter.TickerPrice(ctx, symbol)
			if err != nil {
				logx.Errorf("market: tickerPrice(%s) failed: %v", symbol, err)
				return
			}
			row := c.ensureRow(symbol, SourceConfigured)
			row.mu.Lock()
			row.Price = tick.Price
			row.HasPrice = true
			row.UpdatedAt = tick.Time
			row.mu.Unlock()
		}(symbol)
	}
}

// Ticker24hLoop refreshes 24h change/volume for every tracked symbol.
func (c *Cache) Ticker24hLoop(ctx context.Context) {
	ticker := time.NewTicker(c.ticker24Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshTicker24h(ctx)
		}
	}
}

func (c *Cache) refreshTicker24h(ctx context.Context) {
	for _, symbol := range c.trackedSymbols() {
		key := "ticker24h:" + symbol
		if !c.inflight.tryStart(key) {
			logx.Infof("market: skipping 24h refresh for %s, prior request still in flight", symbol)
			continue
		}
		go func(symbol string) {
			defer c.inflight.finish(key)
			t24, err := c.adapter.Ticker24h(ctx, symbol)
			if err != nil {
				logx.Errorf("market: ticker24h(%s) failed: %v", symbol, err)
				return
			}
			row := c.ensureRow(symbol, SourceConfigured)
			row.mu.Lock()
			row.Change24h = t24.PriceChangePercent
			row.QuoteVolume = t24.QuoteVolume
			row.Has24h = true
			row.Updated24hAt = t24.CloseTime
			row.mu.Unlock()
		}(symbol)
	}
}

// KlineLoop fetches each tracked interval's klines at the interval
// boundary plus a small jitter, per symbol.
func (c *Cache) KlineLoop(ctx context.Context) {
	for _, interval := range c.intervals {
		go c.klineLoopForInterval(ctx, interval)
	}
	<-ctx.Done()
}

func (c *Cache) klineLoopForInterval(ctx context.Context, interval exchange.Interval) {
	period := intervalDuration(interval)
	if period <= 0 {
		period = time.Minute
	}
	jitter := time.Duration(rand.Int63n(int64(c.klineJitter) + 1))
	timer := time.NewTimer(jitter)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.refreshKlines(ctx, interval)
			timer.Reset(period)
		}
	}
}

func (c *Cache) refreshKlines(ctx context.Context, interval exchange.Interval) {
	for _, symbol := range c.trackedSymbols() {
		key := "klines:" + symbol + ":" + string(interval)
		if !c.inflight.tryStart(key) {
			logx.Infof("market: skipping kline refresh for %s %s, prior request still in flight", symbol, interval)
			continue
		}
		go func(symbol string) {
			defer c.inflight.finish(key)
			bars, err := c.adapter.Klines(ctx, symbol, interval, 100)
			if err != nil {
				logx.Errorf("market: klines(%s,%s) failed: %v", symbol, interval, err)
				return
			}
			c.mu.Lock()
			ring, ok := c.klines[klineKey{symbol, interval}]
			if !ok {
				ring = newKlineRing(ringCapacity)
				c.klines[klineKey{symbol, interval}] = ring
			}
			ring.replace(bars)
			c.mu.Unlock()
		}(symbol)
	}
}

func intervalDuration(i exchange.Interval) time.Duration {
	switch i {
	case exchange.Interval1m:
		return time.Minute
	case exchange.Interval3m:
		return 3 * time.Minute
	case exchange.Interval5m:
		return 5 * time.Minute
	case exchange.Interval15m:
		return 15 * time.Minute
	case exchange.Interval30m:
		return 30 * time.Minute
	case exchange.Interval1h:
		return time.Hour
	case exchange.Interval2h:
		return 2 * time.Hour
	case exchange.Interval4h:
		return 4 * time.Hour
	case exchange.Interval6h:
		return 6 * time.Hour
	case exchange.Interval8h:
		return 8 * time.Hour
	case exchange.Interval12h:
		return 12 * time.Hour
	case exchange.Interval1d:
		return 24 * time.Hour
	case exchange.Interval3d:
		return 3 * 24 * time.Hour
	case exchange.Interval1w:
		return 7 * 24 * time.Hour
	case exchange.Interval1M:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}
