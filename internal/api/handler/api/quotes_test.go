// internal/api/handler/api/quotes_test.go
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/newthinker/quotesvc/internal/core"
)

// stubService implements QuoteService for testing.
type stubService struct {
	latest     core.Quote
	history    []core.Quote
	err        error
	latestHits int
	historyHit int
}

func (s *stubService) GetLatestQuote(ctx context.Context) (core.Quote, error) {
	s.latestHits++
	return s.latest, s.err
}

func (s *stubService) GetHistory(ctx context.Context) ([]core.Quote, error) {
	s.historyHit++
	return s.history, s.err
}

func TestQuotesHandler_Latest(t *testing.T) {
	svc := &stubService{latest: core.Quote{Timestamp: "2020-01-01 00:00:00.0 +00:00:00", Close: 300.35}}
	h := NewQuotesHandler(svc)

	req := httptest.NewRequest("GET", "/latest_quote", nil)
	w := httptest.NewRecorder()

	h.Latest(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"timestamp":"2020-01-01 00:00:00.0 +00:00:00","close":300.35}`, w.Body.String())
	assert.Equal(t, 1, svc.latestHits)
}

func TestQuotesHandler_History(t *testing.T) {
	svc := &stubService{history: []core.Quote{
		{Timestamp: "2020-01-02 14:30:00.0 +00:00:00", Close: 300.35},
		{Timestamp: "2020-01-03 14:30:00.0 +00:00:00", Close: 297.43},
	}}
	h := NewQuotesHandler(svc)

	w := httptest.NewRecorder()
	h.History(w, httptest.NewRequest("GET", "/history", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"quotes":[
		{"timestamp":"2020-01-02 14:30:00.0 +00:00:00","close":300.35},
		{"timestamp":"2020-01-03 14:30:00.0 +00:00:00","close":297.43}
	]}`, w.Body.String())
}

func TestQuotesHandler_History_Empty(t *testing.T) {
	for _, quotes := range [][]core.Quote{nil, {}} {
		h := NewQuotesHandler(&stubService{history: quotes})

		w := httptest.NewRecorder()
		h.History(w, httptest.NewRequest("GET", "/history", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"quotes":[]}`, w.Body.String())
	}
}

func TestQuotesHandler_Errors(t *testing.T) {
	errs := []error{
		core.WrapError(core.ErrNetworkFailure, errors.New("connection refused")),
		core.WrapError(core.ErrNoData, nil),
		core.WrapError(core.ErrProviderUnavailable, errors.New("bad base url")),
		core.ErrMalformedResponse,
	}

	for _, err := range errs {
		h := NewQuotesHandler(&stubService{err: err})

		for name, serve := range map[string]http.HandlerFunc{"latest": h.Latest, "history": h.History} {
			w := httptest.NewRecorder()
			serve(w, httptest.NewRequest("GET", "/", nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code, name)
			assert.Equal(t, err.Error(), w.Body.String(), name)
			assert.NotContains(t, w.Body.String(), "close", name)
		}
	}
}

func TestQuotesHandler_Latest_NonFiniteClose(t *testing.T) {
	h := NewQuotesHandler(&stubService{latest: core.Quote{Timestamp: "x", Close: math.Inf(1)}})

	w := httptest.NewRecorder()
	h.Latest(w, httptest.NewRequest("GET", "/latest_quote", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Body.String())
}
