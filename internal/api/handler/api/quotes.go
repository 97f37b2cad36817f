// internal/api/handler/api/quotes.go
package api

import (
	"context"
	"net/http"

	"github.com/newthinker/quotesvc/internal/api/response"
	"github.com/newthinker/quotesvc/internal/core"
)

// QuoteService is the retrieval side the handlers need.
type QuoteService interface {
	GetLatestQuote(ctx context.Context) (core.Quote, error)
	GetHistory(ctx context.Context) ([]core.Quote, error)
}

// QuotesHandler serves the quote endpoints.
type QuotesHandler struct {
	svc QuoteService
}

// NewQuotesHandler creates a new quotes handler.
func NewQuotesHandler(svc QuoteService) *QuotesHandler {
	return &QuotesHandler{svc: svc}
}

// Latest returns the most recent quote.
//
// GET /latest_quote -> {"timestamp": "...", "close": 300.35}
func (h *QuotesHandler) Latest(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.GetLatestQuote(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}

// History returns the quotes of the configured range.
//
// GET /history -> {"quotes": [...]}
func (h *QuotesHandler) History(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.svc.GetHistory(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	if quotes == nil {
		quotes = []core.Quote{}
	}
	response.JSON(w, http.StatusOK, core.HistoricalQuotes{Quotes: quotes})
}
