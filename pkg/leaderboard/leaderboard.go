// Package leaderboard builds a periodically refreshed gainers/losers
// ranking over the Market Cache's 24h statistics.
package leaderboard

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-core/pkg/bus"
	"nof0-core/pkg/market"
)

// Row is one ranked entry.
type Row struct {
	Rank           int
	Symbol         string
	ContractSymbol string
	Price          float64
	Change24h      float64
	QuoteVolume    float64
}

// Snapshot is the atomically-swapped leaderboard result.
type Snapshot struct {
	BuiltAt time.Time
	Gainers []Row
	Losers  []Row
}

// Builder rebuilds the leaderboard on its own ticker, grounded on the
// teacher's |1h change| candidate ranking (selectCandidates in
// pkg/manager/manager.go), generalized to change24h with a volume floor
// and a gainers/losers split.
type Builder struct {
	cache     *market.Cache
	publisher *bus.Bus

	minVolume float64
	limit     int
	every     time.Duration

	paused atomic.Bool
	latest atomic.Pointer[Snapshot]
}

// New constructs a Builder. minVolume filters out illiquid symbols;
// limit bounds the gainers/losers list length.
func New(cache *market.Cache, publisher *bus.Bus, minVolume float64, limit int, every time.Duration) *Builder {
	if limit <= 0 {
		limit = 10
	}
	if every <= 0 {
		every = 10 * time.Second
	}
	b := &Builder{cache: cache, publisher: publisher, minVolume: minVolume, limit: limit, every: every}
	b.latest.Store(&Snapshot{BuiltAt: time.Time{}, Gainers: nil, Losers: nil})
	return b
}

// Pause stops publishing updates; the loop keeps rebuilding and the most
// recent snapshot remains readable via Latest.
func (b *Builder) Pause()  { b.paused.Store(true) }
func (b *Builder) Resume() { b.paused.Store(false) }
func (b *Builder) Paused() bool { return b.paused.Load() }

// Latest returns the most recently built snapshot (never nil).
func (b *Builder) Latest() *Snapshot { return b.latest.Load() }

// Run rebuilds the leaderboard every `every` until ctx is cancelled.
func (b *Builder) Run(ctx context.Context) {
	ticker := time.NewTicker(b.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.rebuild()
		}
	}
}

func (b *Builder) rebuild() {
	rows := b.cache.GetSnapshot()

	filtered := make([]Row, 0, len(rows))
	for symbol, row := range rows {
		if !row.HasPrice {
			continue
		}
		if row.QuoteVolume < b.minVolume {
			continue
		}
		filtered = append(filtered, Row{
			Symbol:         symbol,
			ContractSymbol: symbol,
			Price:          row.Price,
			Change24h:      row.Change24h,
			QuoteVolume:    row.QuoteVolume,
		})
	}

	gainers := append([]Row(nil), filtered...)
	sort.Slice(gainers, func(i, j int) bool { return gainers[i].Change24h > gainers[j].Change24h })
	gainers = rank(truncate(gainers, b.limit))

	losers := append([]Row(nil), filtered...)
	sort.Slice(losers, func(i, j int) bool { return losers[i].Change24h < losers[j].Change24h })
	losers = rank(truncate(losers, b.limit))

	snap := &Snapshot{BuiltAt: time.Now(), Gainers: gainers, Losers: losers}
	b.latest.Store(snap)

	if b.paused.Load() {
		return
	}
	if b.publisher != nil {
		if err := b.publisher.Publish(bus.TopicLeaderboardUpdate, snap); err != nil {
			logx.Errorf("leaderboard: publish update: %v", err)
			if pubErr := b.publisher.Publish(bus.TopicLeaderboardError, err.Error()); pubErr != nil {
				logx.Errorf("leaderboard: publish error event: %v", pubErr)
			}
		}
	}
}

func truncate(rows []Row, limit int) []Row {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func rank(rows []Row) []Row {
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
