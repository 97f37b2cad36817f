package core

import "time"

// DefaultSymbol is the ticker queried when none is configured.
const DefaultSymbol = "AAPL"

// RawQuote is a provider-native bar. Timestamp is epoch seconds, UTC.
// Only Timestamp and Close reach the canonical Quote.
type RawQuote struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Quote is the canonical, output-facing quote.
type Quote struct {
	Timestamp string  `json:"timestamp"`
	Close     float64 `json:"close"`
}

// HistoryQuery describes a history request. Start and End are inclusive.
type HistoryQuery struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

// HistoricalQuotes is the /history response payload.
type HistoricalQuotes struct {
	Quotes []Quote `json:"quotes"`
}
