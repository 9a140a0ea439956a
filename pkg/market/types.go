package market

import (
	"time"

	"nof0-core/pkg/exchange"
)

// Source records why a symbol is tracked by the cache, per spec: symbols
// come either from the operator-curated configured set or because some
// model currently holds a position in them.
type Source string

const (
	SourceConfigured Source = "configured"
	SourcePosition   Source = "position"
)

// LiveQuote is the single-writer-per-symbol row the PriceLoop and
// Ticker24hLoop update independently. A reader always sees either the
// entirely-old or entirely-new value for a given field group — never a
// half-written mix of the two loops' outputs — because each loop only
// ever replaces the fields it owns under the row's own mutex.
type LiveQuote struct {
	Symbol    string
	Source    Source
	Price     float64
	HasPrice  bool // false until the first successful tickerPrice fetch
	UpdatedAt time.Time

	Change24h    float64
	QuoteVolume  float64
	Has24h       bool
	Updated24hAt time.Time
}

// SnapshotRow is one entry of GetSnapshot's derived read.
type SnapshotRow struct {
	Symbol      string
	Price       float64
	HasPrice    bool
	Change24h   float64
	QuoteVolume float64
	Source      Source
}

// MovingAverages holds the spec's three simple moving averages. A nil
// pointer field means "insufficient bars" (null in the API sense).
type MovingAverages struct {
	MA5  *float64
	MA10 *float64
	MA20 *float64
}

// IntervalIndicators is one interval's derived indicator bundle.
type IntervalIndicators struct {
	Change float64
	MA     MovingAverages
}

// klineRing is a fixed-capacity ring buffer of closed bars for one
// (symbol, interval) pair, holding enough history for MA20 plus one
// extra confirmed bar.
type klineRing struct {
	bars []exchange.Kline // oldest first, len <= cap
	cap  int
}

func newKlineRing(capacity int) *klineRing {
	if capacity < 1 {
		capacity = 1
	}
	return &klineRing{bars: make([]exchange.Kline, 0, capacity), cap: capacity}
}

// replace swaps in a freshly fetched, ascending-by-open-time bar set,
// trimmed to the ring's capacity from the tail (most recent bars win).
func (r *klineRing) replace(bars []exchange.Kline) {
	if len(bars) > r.cap {
		bars = bars[len(bars)-r.cap:]
	}
	r.bars = append(r.bars[:0], bars...)
}

func (r *klineRing) closes() []float64 {
	out := make([]float64, len(r.bars))
	for i, b := range r.bars {
		out[i] = b.Close
	}
	return out
}

func (r *klineRing) snapshot() []exchange.Kline {
	out := make([]exchange.Kline, len(r.bars))
	copy(out, r.bars)
	return out
}
