package market

import (
	"math"

	"nof0-core/pkg/market/indicators"
)

// GetSnapshot is the cache's primary derived read: a consistent
// per-symbol row for every tracked symbol. Symbols that have never had
// a successful price fetch are included with HasPrice=false rather than
// omitted, so callers can tell "unknown" apart from "not tracked".
func (c *Cache) GetSnapshot() map[string]SnapshotRow {
	c.mu.RLock()
	rows := make([]*quoteRow, 0, len(c.quotes))
	for _, row := range c.quotes {
		rows = append(rows, row)
	}
	c.mu.RUnlock()

	out := make(map[string]SnapshotRow, len(rows))
	for _, row := range rows {
		row.mu.RLock()
		out[row.Symbol] = SnapshotRow{
			Symbol:      row.Symbol,
			Price:       row.Price,
			HasPrice:    row.HasPrice,
			Change24h:   row.Change24h,
			QuoteVolume: row.QuoteVolume,
			Source:      row.Source,
		}
		row.mu.RUnlock()
	}
	return out
}

// GetIndicators returns the per-interval change% and MA5/MA10/MA20 for a
// symbol, derived from its kline rings. Intervals with no ring yet (no
// successful kline fetch) are omitted.
func (c *Cache) GetIndicators(symbol string) map[string]IntervalIndicators {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]IntervalIndicators)
	for key, ring := range c.klines {
		if key.symbol != symbol {
			continue
		}
		closes := ring.closes()
		if len(closes) == 0 {
			continue
		}
		out[string(key.interval)] = IntervalIndicators{
			Change: percentChange(closes),
			MA:     movingAverages(closes),
		}
	}
	return out
}

func percentChange(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	first, last := closes[0], closes[len(closes)-1]
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}

func movingAverages(closes []float64) MovingAverages {
	return MovingAverages{
		MA5:  lastSMA(closes, 5),
		MA10: lastSMA(closes, 10),
		MA20: lastSMA(closes, 20),
	}
}

// lastSMA returns the simple moving average of the last `period` closes,
// or nil if there are fewer than `period` bars (spec: "insufficient bars
// ⇒ null").
func lastSMA(closes []float64, period int) *float64 {
	series := indicators.SMA(closes, period)
	if len(series) == 0 {
		return nil
	}
	last := series[len(series)-1]
	if math.IsNaN(last) {
		return nil
	}
	return &last
}
