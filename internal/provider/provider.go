// Package provider defines the market-data provider contract used by the
// quote service.
package provider

//go:generate mockgen -destination=mocks/provider.go -package=mocks github.com/newthinker/quotesvc/internal/provider Provider

import (
	"context"

	"github.com/newthinker/quotesvc/internal/core"
)

// Provider fetches raw quotes from an external market-data source.
//
// Failures are *core.Error values coded as ErrProviderUnavailable,
// ErrNoData, ErrMalformedResponse or ErrNetworkFailure.
type Provider interface {
	Name() string

	// FetchLatest returns the most recent bar for symbol. It never returns
	// an empty success: no bar is ErrNoData.
	FetchLatest(ctx context.Context, symbol string) (core.RawQuote, error)

	// FetchHistory returns the bars between q.Start and q.End in provider
	// order. An empty slice is a valid result.
	FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.RawQuote, error)
}

// Factory opens a fresh provider session. A construction failure is
// reported as ErrProviderUnavailable.
type Factory func() (Provider, error)
