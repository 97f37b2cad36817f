// Package yahoo implements the quote provider on top of the Yahoo Finance
// v8 chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/quotesvc/internal/core"
	"github.com/newthinker/quotesvc/internal/httpx"
	"github.com/newthinker/quotesvc/internal/provider"
)

const (
	// Name is the registry key of this provider.
	Name = "yahoo"

	// DefaultBaseURL is the public chart endpoint.
	DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

	userAgent = "Mozilla/5.0 (compatible; quotesvc/1.0)"
)

// Config holds Yahoo provider settings
type Config struct {
	BaseURL     string
	Interval    string        // bar size, e.g. "1d"
	LatestRange string        // trailing window searched for the latest bar, e.g. "1mo"
	Timeout     time.Duration // zero disables the client timeout
}

// DefaultConfig mirrors the query the service has always issued:
// daily bars, latest taken from the trailing month.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Interval:    "1d",
		LatestRange: "1mo",
		Timeout:     10 * time.Second,
	}
}

// Yahoo implements provider.Provider
type Yahoo struct {
	client  *http.Client
	baseURL *url.URL
	config  Config
}

var _ provider.Provider = (*Yahoo)(nil)

// New creates a Yahoo provider. A nil client gets one from httpx.
func New(cfg Config, client *http.Client) (*Yahoo, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("parsing base url: %w", err))
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("base url must be absolute: %q", cfg.BaseURL))
	}
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	if cfg.LatestRange == "" {
		cfg.LatestRange = "1mo"
	}
	if client == nil {
		client = httpx.NewHTTPClient(cfg.Timeout)
	}
	return &Yahoo{client: client, baseURL: u, config: cfg}, nil
}

// NewFactory returns a provider.Factory that opens a new session per call.
func NewFactory(cfg Config) provider.Factory {
	return func() (provider.Provider, error) {
		return New(cfg, nil)
	}
}

func (y *Yahoo) Name() string {
	return Name
}

// FetchLatest returns the last bar of the trailing window
func (y *Yahoo) FetchLatest(ctx context.Context, symbol string) (core.RawQuote, error) {
	params := url.Values{}
	params.Set("interval", y.config.Interval)
	params.Set("range", y.config.LatestRange)

	r, err := y.fetchChart(ctx, symbol, params)
	if err != nil {
		return core.RawQuote{}, err
	}
	if r == nil {
		return core.RawQuote{}, core.WrapError(core.ErrNoData, fmt.Errorf("no result for symbol: %s", symbol))
	}

	bars, err := r.bars()
	if err != nil {
		return core.RawQuote{}, err
	}
	if len(bars) == 0 {
		return core.RawQuote{}, core.WrapError(core.ErrNoData, fmt.Errorf("no quotes for symbol: %s", symbol))
	}
	return bars[len(bars)-1], nil
}

// FetchHistory fetches bars between q.Start and q.End
func (y *Yahoo) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.RawQuote, error) {
	params := url.Values{}
	params.Set("interval", y.config.Interval)
	params.Set("period1", strconv.FormatInt(q.Start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(q.End.Unix(), 10))

	r, err := y.fetchChart(ctx, q.Symbol, params)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return []core.RawQuote{}, nil
	}
	return r.bars()
}

// fetchChart issues one chart request. A nil result with a nil error means
// the provider answered without any result block.
func (y *Yahoo) fetchChart(ctx context.Context, symbol string, params url.Values) (*chartResult, error) {
	u := y.baseURL.JoinPath(symbol)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrNetworkFailure, fmt.Errorf("fetching chart: %w", err))
	}
	defer resp.Body.Close()

	var result chartResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	// Yahoo reports unknown symbols as 404 with a chart error body.
	if result.Chart.Error != nil {
		return nil, chartError(symbol, result.Chart.Error)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("symbol not found: %s", symbol))
	case resp.StatusCode != http.StatusOK:
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, core.WrapError(core.ErrMalformedResponse, fmt.Errorf("decoding response: %w", decodeErr))
	}

	if len(result.Chart.Result) == 0 {
		return nil, nil
	}
	return &result.Chart.Result[0], nil
}

func chartError(symbol string, e *chartErrorBody) error {
	if strings.EqualFold(e.Code, "Not Found") {
		return core.WrapError(core.ErrNoData, fmt.Errorf("yahoo: %s: %s", symbol, e.Description))
	}
	return core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("yahoo error %s: %s", e.Code, e.Description))
}

// bars zips the timestamp column with the quote columns. Bars without a
// close price are skipped.
func (r *chartResult) bars() ([]core.RawQuote, error) {
	if len(r.Indicators.Quote) == 0 || len(r.Timestamp) == 0 {
		return []core.RawQuote{}, nil
	}
	q := r.Indicators.Quote[0]
	if len(q.Close) != len(r.Timestamp) {
		return nil, core.WrapError(core.ErrMalformedResponse,
			fmt.Errorf("close column has %d values for %d timestamps", len(q.Close), len(r.Timestamp)))
	}

	out := make([]core.RawQuote, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if q.Close[i] == nil {
			continue // Skip missing data
		}
		if ts < 0 {
			return nil, core.WrapError(core.ErrMalformedResponse, fmt.Errorf("negative timestamp %d", ts))
		}
		out = append(out, core.RawQuote{
			Timestamp: ts,
			Open:      floatAt(q.Open, i),
			High:      floatAt(q.High, i),
			Low:       floatAt(q.Low, i),
			Close:     *q.Close[i],
			Volume:    intAt(q.Volume, i),
		})
	}
	return out, nil
}

func floatAt(col []*float64, i int) float64 {
	if i < len(col) && col[i] != nil {
		return *col[i]
	}
	return 0
}

func intAt(col []*int64, i int) int64 {
	if i < len(col) && col[i] != nil {
		return *col[i]
	}
	return 0
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult   `json:"result"`
		Error  *chartErrorBody `json:"error"`
	} `json:"chart"`
}

type chartErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
