// Package twelvedata implements the quote provider on top of the Twelve Data
// time_series API.
package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quotesvc/internal/core"
	"github.com/newthinker/quotesvc/internal/httpx"
	"github.com/newthinker/quotesvc/internal/provider"
)

const (
	Name           = "twelvedata"
	DefaultBaseURL = "https://api.twelvedata.com"

	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"

	// Returned with code 400 when a range holds no bars.
	noDataMessage = "No data is available"
)

var errEmptyRange = errors.New("no bars in range")

// Config holds Twelve Data settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Interval string // e.g. "1day"
	Timeout  time.Duration
}

// TwelveData implements provider.Provider.
type TwelveData struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ provider.Provider = (*TwelveData)(nil)

// New creates a provider. An empty API key or base URL fails with ErrProviderUnavailable.
func New(cfg Config, client *http.Client, logger *zap.Logger) (*TwelveData, error) {
	if cfg.APIKey == "" {
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("twelvedata: api key not set"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("twelvedata: base url: %w", err))
	}
	if cfg.Interval == "" {
		cfg.Interval = "1day"
	}
	if client == nil {
		client = httpx.NewHTTPClient(cfg.Timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwelveData{cfg: cfg, client: client, logger: logger}, nil
}

// NewFactory returns a provider.Factory that opens a new session per call.
func NewFactory(cfg Config, logger *zap.Logger) provider.Factory {
	return func() (provider.Provider, error) {
		return New(cfg, nil, logger)
	}
}

func (t *TwelveData) Name() string {
	return Name
}

// FetchLatest requests a single newest bar.
func (t *TwelveData) FetchLatest(ctx context.Context, symbol string) (core.RawQuote, error) {
	q := url.Values{}
	q.Set("outputsize", "1")

	quotes, err := t.timeSeries(ctx, symbol, q)
	if err != nil {
		return core.RawQuote{}, err
	}
	if len(quotes) == 0 {
		return core.RawQuote{}, core.WrapError(core.ErrNoData, fmt.Errorf("no quotes for symbol: %s", symbol))
	}
	return quotes[0], nil
}

// FetchHistory requests bars between the query bounds in ascending order.
func (t *TwelveData) FetchHistory(ctx context.Context, hq core.HistoryQuery) ([]core.RawQuote, error) {
	q := url.Values{}
	q.Set("start_date", hq.Start.UTC().Format(dateTimeLayout))
	q.Set("end_date", hq.End.UTC().Format(dateTimeLayout))
	q.Set("order", "ASC")
	q.Set("outputsize", "5000")

	quotes, err := t.timeSeries(ctx, hq.Symbol, q)
	if errors.Is(err, errEmptyRange) {
		return []core.RawQuote{}, nil
	}
	return quotes, err
}

func (t *TwelveData) timeSeries(ctx context.Context, symbol string, q url.Values) ([]core.RawQuote, error) {
	q.Set("symbol", symbol)
	q.Set("interval", t.cfg.Interval)
	q.Set("timezone", "UTC")

	u := fmt.Sprintf("%s/time_series?%s", t.cfg.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderUnavailable, err)
	}
	// The key stays out of the URL so it never shows up in errors.
	req.Header.Set("Authorization", "apikey "+t.cfg.APIKey)

	res, err := t.client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = fmt.Errorf("twelvedata %s: %w", strings.ToLower(ue.Op), ue.Err)
		}
		return nil, core.WrapError(core.ErrNetworkFailure, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			t.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if res.StatusCode >= 400 {
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("twelvedata http %d", res.StatusCode))
	}

	var body timeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, core.WrapError(core.ErrMalformedResponse, err)
	}
	if body.Status == "error" {
		if body.Code == http.StatusBadRequest && strings.HasPrefix(body.Message, noDataMessage) {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("twelvedata: %w: %s", errEmptyRange, body.Message))
		}
		if body.Code == http.StatusNotFound {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("twelvedata: %s", body.Message))
		}
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("twelvedata: %s", body.Message))
	}

	quotes := make([]core.RawQuote, 0, len(body.Values))
	for _, v := range body.Values {
		rq, err := v.toRaw()
		if err != nil {
			return nil, core.WrapError(core.ErrMalformedResponse, err)
		}
		quotes = append(quotes, rq)
	}
	return quotes, nil
}

func (v timeSeriesValue) toRaw() (core.RawQuote, error) {
	tm, err := time.ParseInLocation(dateTimeLayout, v.Datetime, time.UTC)
	if err != nil {
		tm, err = time.ParseInLocation(dateLayout, v.Datetime, time.UTC)
		if err != nil {
			return core.RawQuote{}, fmt.Errorf("parse time %q: %w", v.Datetime, err)
		}
	}
	c, err := strconv.ParseFloat(v.Close, 64)
	if err != nil {
		return core.RawQuote{}, fmt.Errorf("parse close %q: %w", v.Close, err)
	}

	rq := core.RawQuote{Timestamp: tm.Unix(), Close: c}
	if rq.Open, err = optionalFloat(v.Open); err != nil {
		return core.RawQuote{}, fmt.Errorf("parse open %q: %w", v.Open, err)
	}
	if rq.High, err = optionalFloat(v.High); err != nil {
		return core.RawQuote{}, fmt.Errorf("parse high %q: %w", v.High, err)
	}
	if rq.Low, err = optionalFloat(v.Low); err != nil {
		return core.RawQuote{}, fmt.Errorf("parse low %q: %w", v.Low, err)
	}
	// Forex and index series carry no volume.
	if v.Volume != "" {
		if rq.Volume, err = strconv.ParseInt(v.Volume, 10, 64); err != nil {
			return core.RawQuote{}, fmt.Errorf("parse volume %q: %w", v.Volume, err)
		}
	}
	return rq, nil
}

func optionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// timeSeriesResponse is the JSON body of /time_series.
type timeSeriesResponse struct {
	Status  string            `json:"status"`
	Code    int               `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Values  []timeSeriesValue `json:"values"`
}

type timeSeriesValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}
