package quote_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newthinker/quotesvc/internal/core"
	"github.com/newthinker/quotesvc/internal/provider"
	"github.com/newthinker/quotesvc/internal/provider/mocks"
	"github.com/newthinker/quotesvc/internal/quote"
)

type call struct {
	provider, operation, outcome string
}

// recorderSpy captures provider call observations.
type recorderSpy struct {
	calls []call
}

func (r *recorderSpy) RecordProviderCall(p, op, outcome string, seconds float64) {
	r.calls = append(r.calls, call{p, op, outcome})
}

func factoryOf(p provider.Provider) provider.Factory {
	return func() (provider.Provider, error) { return p, nil }
}

func newMock(t *testing.T) *mocks.MockProvider {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := mocks.NewMockProvider(ctrl)
	m.EXPECT().Name().Return("mock").AnyTimes()
	return m
}

func TestService_GetLatestQuote(t *testing.T) {
	m := newMock(t)
	m.EXPECT().
		FetchLatest(gomock.Any(), "AAPL").
		Return(core.RawQuote{Timestamp: 1577836800, Close: 300.35}, nil).
		Times(1)

	rec := &recorderSpy{}
	svc := quote.NewService(factoryOf(m), quote.DefaultOptions(), nil, rec)

	q, err := svc.GetLatestQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.Quote{Timestamp: "2020-01-01 00:00:00.0 +00:00:00", Close: 300.35}, q)
	assert.Equal(t, []call{{"mock", "latest", "ok"}}, rec.calls)
}

func TestService_GetLatestQuote_UsesConfiguredSymbol(t *testing.T) {
	m := newMock(t)
	m.EXPECT().
		FetchLatest(gomock.Any(), "MSFT").
		Return(core.RawQuote{Timestamp: 0, Close: 1}, nil)

	opts := quote.DefaultOptions()
	opts.Symbol = "MSFT"
	svc := quote.NewService(factoryOf(m), opts, nil, nil)

	_, err := svc.GetLatestQuote(context.Background())
	require.NoError(t, err)
}

func TestService_GetLatestQuote_PropagatesProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *core.Error
	}{
		{"network failure", core.WrapError(core.ErrNetworkFailure, errors.New("connection reset")), core.ErrNetworkFailure},
		{"no data", core.WrapError(core.ErrNoData, nil), core.ErrNoData},
		{"provider unavailable", core.ErrProviderUnavailable, core.ErrProviderUnavailable},
		{"unclassified", errors.New("boom"), core.ErrNetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMock(t)
			m.EXPECT().FetchLatest(gomock.Any(), gomock.Any()).Return(core.RawQuote{}, tt.err).Times(1)

			rec := &recorderSpy{}
			svc := quote.NewService(factoryOf(m), quote.DefaultOptions(), nil, rec)

			q, err := svc.GetLatestQuote(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
			assert.Zero(t, q)
			require.Len(t, rec.calls, 1)
		})
	}
}

func TestService_GetHistory(t *testing.T) {
	raws := []core.RawQuote{
		{Timestamp: 1577975400, Close: 300.35},
		{Timestamp: 1578061800, Close: 297.43},
		{Timestamp: 1578321000, Close: 299.80},
	}

	m := newMock(t)
	m.EXPECT().
		FetchHistory(gomock.Any(), core.HistoryQuery{
			Symbol: "AAPL",
			Start:  quote.DefaultRangeStart,
			End:    quote.DefaultRangeEnd,
		}).
		Return(raws, nil).
		Times(1)

	svc := quote.NewService(factoryOf(m), quote.DefaultOptions(), nil, nil)

	quotes, err := svc.GetHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, quote.NormalizeAll(raws), quotes)
}

func TestService_GetHistory_EmptyIsSuccess(t *testing.T) {
	for _, raws := range [][]core.RawQuote{nil, {}} {
		m := newMock(t)
		m.EXPECT().FetchHistory(gomock.Any(), gomock.Any()).Return(raws, nil)

		rec := &recorderSpy{}
		svc := quote.NewService(factoryOf(m), quote.DefaultOptions(), nil, rec)

		quotes, err := svc.GetHistory(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, quotes)
		assert.Empty(t, quotes)
		assert.Equal(t, []call{{"mock", "history", "ok"}}, rec.calls)
	}
}

func TestService_GetHistory_NetworkFailure(t *testing.T) {
	m := newMock(t)
	m.EXPECT().
		FetchHistory(gomock.Any(), gomock.Any()).
		Return(nil, core.WrapError(core.ErrNetworkFailure, context.DeadlineExceeded))

	rec := &recorderSpy{}
	svc := quote.NewService(factoryOf(m), quote.DefaultOptions(), nil, rec)

	quotes, err := svc.GetHistory(context.Background())
	assert.ErrorIs(t, err, core.ErrNetworkFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, quotes)
	assert.Equal(t, []call{{"mock", "history", "network_failure"}}, rec.calls)
}

func TestService_ProviderConstructionFails(t *testing.T) {
	tests := []struct {
		name    string
		factory provider.Factory
		want    *core.Error
	}{
		{"nil factory", nil, core.ErrProviderUnavailable},
		{"plain error", func() (provider.Provider, error) { return nil, errors.New("dns lookup failed") }, core.ErrProviderUnavailable},
		{"coded error", func() (provider.Provider, error) { return nil, core.WrapError(core.ErrProviderUnavailable, nil) }, core.ErrProviderUnavailable},
		{"nil provider", func() (provider.Provider, error) { return nil, nil }, core.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorderSpy{}
			svc := quote.NewService(tt.factory, quote.DefaultOptions(), nil, rec)

			q, err := svc.GetLatestQuote(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, q)

			quotes, err := svc.GetHistory(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, quotes)

			// No provider call was made.
			assert.Empty(t, rec.calls)
		})
	}
}

func TestService_OpensFreshProviderPerCall(t *testing.T) {
	opened := 0
	m := newMock(t)
	m.EXPECT().FetchLatest(gomock.Any(), gomock.Any()).Return(core.RawQuote{}, nil).Times(2)

	svc := quote.NewService(func() (provider.Provider, error) {
		opened++
		return m, nil
	}, quote.DefaultOptions(), nil, nil)

	_, _ = svc.GetLatestQuote(context.Background())
	_, _ = svc.GetLatestQuote(context.Background())
	assert.Equal(t, 2, opened)
}

func TestService_LogsErrorCode(t *testing.T) {
	var buf bytes.Buffer
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	logger := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(&buf), zapcore.InfoLevel))

	m := newMock(t)
	m.EXPECT().FetchLatest(gomock.Any(), gomock.Any()).Return(core.RawQuote{}, core.WrapError(core.ErrNoData, nil))

	svc := quote.NewService(factoryOf(m), quote.DefaultOptions(), logger, nil)
	_, err := svc.GetLatestQuote(context.Background())
	require.Error(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log: %s", buf.String())
	assert.Equal(t, "quote retrieval failed", entry["msg"])
	assert.Equal(t, "NO_DATA", entry["error_code"])
	assert.Equal(t, "latest", entry["operation"])
	assert.Equal(t, "AAPL", entry["symbol"])
}
