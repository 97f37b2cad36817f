// Package quote turns provider bars into canonical quotes and implements the
// latest-quote and history retrieval operations.
package quote

import (
	"time"

	"github.com/newthinker/quotesvc/internal/core"
)

// TimestampLayout renders quote times in UTC, e.g.
// "2020-01-01 00:00:00.0 +00:00:00".
const TimestampLayout = "2006-01-02 15:04:05.0 -07:00:00"

// Normalize converts a provider bar into a canonical quote. Close is copied
// as is, including non-finite values.
func Normalize(raw core.RawQuote) core.Quote {
	return core.Quote{
		Timestamp: time.Unix(raw.Timestamp, 0).UTC().Format(TimestampLayout),
		Close:     raw.Close,
	}
}

// NormalizeAll normalizes raws element-wise. The result always has the same
// length and order as raws and is never nil.
func NormalizeAll(raws []core.RawQuote) []core.Quote {
	out := make([]core.Quote, len(raws))
	for i, r := range raws {
		out[i] = Normalize(r)
	}
	return out
}
