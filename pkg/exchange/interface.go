package exchange

import "context"

// Adapter exposes read-side market data plus an optional order-placement
// path over a single perpetual futures venue. PlaceOrder returns
// ErrOrderingUnsupported from adapters that are read-only (e.g. a venue
// wired only for market data ingestion).
type Adapter interface {
	TickerPrice(ctx context.Context, symbol string) (*TickerPrice, error)
	Ticker24h(ctx context.Context, symbol string) (*Ticker24h, error)
	Klines(ctx context.Context, symbol string, interval Interval, limit int) ([]Kline, error)
	PlaceOrder(ctx context.Context, order OrderRequest) (*OrderResult, error)
}

// AdapterBuilder constructs an Adapter from configuration.
type AdapterBuilder func(name string, cfg *ProviderConfig) (Adapter, error)
