package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultBaseURL          = "https://fapi.example-venue.com"
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond
)

// RESTClient is a generic Binance-style perpetual futures REST adapter.
// It is registered under the "rest" provider type and is the default
// Adapter for any venue whose API shape matches ticker/klines/order
// endpoints rather than Hyperliquid's signed-action RPC surface.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     logx.Logger

	signer   Signer // optional; nil means PlaceOrder returns ErrOrderingUnsupported
	apiKey   string
}

// ClientOption configures a new RESTClient.
type ClientOption func(*RESTClient)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *RESTClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default REST endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *RESTClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithMaxRetries adjusts the retry budget for transient failures.
func WithMaxRetries(max int) ClientOption {
	return func(c *RESTClient) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithSigner attaches a Signer so PlaceOrder can submit authenticated
// requests; without one the adapter is read-only.
func WithSigner(s Signer, apiKey string) ClientOption {
	return func(c *RESTClient) {
		c.signer = s
		c.apiKey = apiKey
	}
}

// NewRESTClient constructs a generic perpetual futures REST adapter.
func NewRESTClient(opts ...ClientOption) *RESTClient {
	c := &RESTClient{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries: defaultMaxRetries,
		logger:     logx.WithContext(context.Background()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TickerPrice fetches the instantaneous last-traded price.
func (c *RESTClient) TickerPrice(ctx context.Context, symbol string) (*TickerPrice, error) {
	var raw struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
		Time   int64  `json:"time"`
	}
	if err := c.getJSON(ctx, "ticker/price", url.Values{"symbol": {symbol}}, &raw); err != nil {
		return nil, wrapOp("tickerPrice", symbol, err)
	}
	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil {
		return nil, &Error{Kind: KindPermanentUpstream, Op: "tickerPrice", Symbol: symbol, Err: fmt.Errorf("parse price: %w", err)}
	}
	return &TickerPrice{Symbol: symbol, Price: price, Time: msToTime(raw.Time)}, nil
}

// Ticker24h fetches the trailing 24h summary for a symbol.
func (c *RESTClient) Ticker24h(ctx context.Context, symbol string) (*Ticker24h, error) {
	var raw struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChange        string `json:"priceChange"`
		PriceChangePercent string `json:"priceChangePercent"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		Volume             string `json:"volume"`
		QuoteVolume        string `json:"quoteVolume"`
		OpenTime           int64  `json:"openTime"`
		CloseTime          int64  `json:"closeTime"`
	}
	if err := c.getJSON(ctx, "ticker/24hr", url.Values{"symbol": {symbol}}, &raw); err != nil {
		return nil, wrapOp("ticker24h", symbol, err)
	}
	parse := func(s string) float64 { v, _ := strconv.ParseFloat(s, 64); return v }
	return &Ticker24h{
		Symbol:             symbol,
		LastPrice:          parse(raw.LastPrice),
		PriceChange:        parse(raw.PriceChange),
		PriceChangePercent: parse(raw.PriceChangePercent),
		HighPrice:          parse(raw.HighPrice),
		LowPrice:           parse(raw.LowPrice),
		Volume:             parse(raw.Volume),
		QuoteVolume:        parse(raw.QuoteVolume),
		OpenTime:           msToTime(raw.OpenTime),
		CloseTime:          msToTime(raw.CloseTime),
	}, nil
}

// Klines fetches OHLCV candles for the given interval.
func (c *RESTClient) Klines(ctx context.Context, symbol string, interval Interval, limit int) ([]Kline, error) {
	if _, ok := ValidIntervals[interval]; !ok {
		return nil, &Error{Kind: KindPermanentUpstream, Op: "klines", Symbol: symbol, Err: fmt.Errorf("unsupported interval %q", interval)}
	}
	if limit <= 0 {
		return nil, &Error{Kind: KindPermanentUpstream, Op: "klines", Symbol: symbol, Err: fmt.Errorf("limit must be positive")}
	}

	var raw [][]interface{}
	q := url.Values{"symbol": {symbol}, "interval": {string(interval)}, "limit": {strconv.Itoa(limit)}}
	if err := c.getJSON(ctx, "klines", q, &raw); err != nil {
		return nil, wrapOp("klines", symbol, err)
	}

	klines := make([]Kline, 0, len(raw))
	for _, row := range raw {
		k, err := decodeKlineRow(row)
		if err != nil {
			return nil, &Error{Kind: KindPermanentUpstream, Op: "klines", Symbol: symbol, Err: err}
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// PlaceOrder submits a market order. Returns ErrOrderingUnsupported when
// the client was constructed without a Signer.
func (c *RESTClient) PlaceOrder(ctx context.Context, order OrderRequest) (*OrderResult, error) {
	if c.signer == nil {
		return nil, ErrOrderingUnsupported
	}
	if order.ClientID == "" {
		return nil, &Error{Kind: KindPermanentUpstream, Op: "placeOrder", Symbol: order.Symbol, Err: fmt.Errorf("client order id required")}
	}

	body := url.Values{
		"symbol":     {order.Symbol},
		"side":       {string(order.Side)},
		"type":       {"MARKET"},
		"quantity":   {strconv.FormatFloat(order.Quantity, 'f', -1, 64)},
		"reduceOnly": {strconv.FormatBool(order.ReduceOnly)},
		"newClientOrderId": {order.ClientID},
	}
	signed, err := c.signer.SignRequest(body)
	if err != nil {
		return nil, &Error{Kind: KindPermanentUpstream, Op: "placeOrder", Symbol: order.Symbol, Err: fmt.Errorf("sign order: %w", err)}
	}

	var raw struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		ExecutedQty   string `json:"executedQty"`
		AvgPrice      string `json:"avgPrice"`
		Status        string `json:"status"`
	}
	if err := c.postForm(ctx, "order", signed, &raw); err != nil {
		return nil, wrapOp("placeOrder", order.Symbol, err)
	}
	filled, _ := strconv.ParseFloat(raw.ExecutedQty, 64)
	avg, _ := strconv.ParseFloat(raw.AvgPrice, 64)
	return &OrderResult{
		OrderID:      strconv.FormatInt(raw.OrderID, 10),
		ClientID:     raw.ClientOrderID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		FilledQty:    filled,
		AvgFillPrice: avg,
		Status:       raw.Status,
	}, nil
}

func wrapOp(op, symbol string, err error) error {
	if e, ok := err.(*Error); ok {
		e.Op = op
		e.Symbol = symbol
		return e
	}
	return &Error{Kind: classifyTransportError(err), Op: op, Symbol: symbol, Err: err}
}

// getJSON performs a retrying GET against the configured base URL,
// decoding the JSON response body into out.
func (c *RESTClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.doRetrying(ctx, func() (*http.Request, error) {
		full := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.baseURL, "/"), path, query.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	}, out)
}

// postForm performs a retrying form-encoded POST, decoding the JSON
// response body into out.
func (c *RESTClient) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	return c.doRetrying(ctx, func() (*http.Request, error) {
		full := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), path)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, full, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if c.apiKey != "" {
			req.Header.Set("X-MBX-APIKEY", c.apiKey)
		}
		return req, nil
	}, out)
}

func (c *RESTClient) doRetrying(ctx context.Context, build func() (*http.Request, error), out interface{}) error {
	backoff := defaultRetryBackoffBase
	var lastErr *Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := build()
		if err != nil {
			return &Error{Kind: KindPermanentUpstream, Err: fmt.Errorf("build request: %w", err)}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &Error{Kind: KindPermanentUpstream, Err: ctx.Err()}
			}
			lastErr = &Error{Kind: classifyTransportError(err), Err: err}
		} else {
			status := resp.StatusCode
			decodeErr := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if status < 200 || status >= 300 {
				lastErr = newError("", "", status, fmt.Errorf("http status %d", status))
			} else if decodeErr != nil {
				return &Error{Kind: KindPermanentUpstream, StatusCode: status, Err: fmt.Errorf("decode response: %w", decodeErr)}
			} else {
				return nil
			}
		}

		if !lastErr.IsRetryable() || attempt == c.maxRetries {
			return lastErr
		}
		c.logger.Debugf("exchange: retrying after transient error attempt=%d err=%v", attempt+1, lastErr)
		select {
		case <-ctx.Done():
			return &Error{Kind: KindPermanentUpstream, Err: ctx.Err()}
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return lastErr
}

func decodeKlineRow(row []interface{}) (Kline, error) {
	if len(row) < 7 {
		return Kline{}, fmt.Errorf("kline row too short: %d fields", len(row))
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("kline openTime: unexpected type")
	}
	parse := func(v interface{}) (float64, error) {
		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("unexpected type %T", v)
		}
		return strconv.ParseFloat(s, 64)
	}
	open, err := parse(row[1])
	if err != nil {
		return Kline{}, fmt.Errorf("open: %w", err)
	}
	high, err := parse(row[2])
	if err != nil {
		return Kline{}, fmt.Errorf("high: %w", err)
	}
	low, err := parse(row[3])
	if err != nil {
		return Kline{}, fmt.Errorf("low: %w", err)
	}
	closePx, err := parse(row[4])
	if err != nil {
		return Kline{}, fmt.Errorf("close: %w", err)
	}
	volume, err := parse(row[5])
	if err != nil {
		return Kline{}, fmt.Errorf("volume: %w", err)
	}
	closeTime, ok := row[6].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("kline closeTime: unexpected type")
	}
	return Kline{
		OpenTime:  msToTime(int64(openTime)),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
		CloseTime: msToTime(int64(closeTime)),
	}, nil
}

func msToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
