package quote

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quotesvc/internal/core"
	"github.com/newthinker/quotesvc/internal/provider"
)

const (
	opLatest  = "latest"
	opHistory = "history"
)

// Default history window: January 2020, both ends inclusive.
var (
	DefaultRangeStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultRangeEnd   = time.Date(2020, 1, 31, 23, 59, 59, 0, time.UTC)
)

// Options fixes the parameters of the retrieval operations.
type Options struct {
	Symbol     string
	RangeStart time.Time
	RangeEnd   time.Time
}

// DefaultOptions returns the AAPL / January 2020 query.
func DefaultOptions() Options {
	return Options{
		Symbol:     core.DefaultSymbol,
		RangeStart: DefaultRangeStart,
		RangeEnd:   DefaultRangeEnd,
	}
}

// Recorder receives one observation per provider call. outcome is "ok" or
// the lower-cased error code.
type Recorder interface {
	RecordProviderCall(provider, operation, outcome string, seconds float64)
}

// Service runs the retrieval operations. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	factory  provider.Factory
	opts     Options
	logger   *zap.Logger
	recorder Recorder
}

// NewService creates a Service. logger and recorder may be nil.
func NewService(factory provider.Factory, opts Options, logger *zap.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		factory:  factory,
		opts:     opts,
		logger:   logger,
		recorder: recorder,
	}
}

// GetLatestQuote fetches and normalizes the most recent quote for the
// configured symbol.
func (s *Service) GetLatestQuote(ctx context.Context) (core.Quote, error) {
	p, err := s.open()
	if err != nil {
		return core.Quote{}, s.fail(opLatest, err)
	}

	start := time.Now()
	raw, err := p.FetchLatest(ctx, s.opts.Symbol)
	s.observe(p.Name(), opLatest, start, err)
	if err != nil {
		return core.Quote{}, s.fail(opLatest, err)
	}

	return Normalize(raw), nil
}

// GetHistory fetches and normalizes the quotes of the configured range. An
// empty range is a successful, empty result.
func (s *Service) GetHistory(ctx context.Context) ([]core.Quote, error) {
	p, err := s.open()
	if err != nil {
		return nil, s.fail(opHistory, err)
	}

	q := core.HistoryQuery{
		Symbol: s.opts.Symbol,
		Start:  s.opts.RangeStart,
		End:    s.opts.RangeEnd,
	}

	start := time.Now()
	raws, err := p.FetchHistory(ctx, q)
	s.observe(p.Name(), opHistory, start, err)
	if err != nil {
		return nil, s.fail(opHistory, err)
	}

	s.logger.Debug("history retrieved",
		zap.String("symbol", q.Symbol),
		zap.Int("quotes", len(raws)),
	)
	return NormalizeAll(raws), nil
}

// open builds a fresh provider session for one request.
func (s *Service) open() (provider.Provider, error) {
	if s.factory == nil {
		return nil, core.WrapError(core.ErrProviderUnavailable, errors.New("no provider configured"))
	}
	p, err := s.factory()
	if err != nil {
		if core.Code(err) == "" {
			err = core.WrapError(core.ErrProviderUnavailable, err)
		}
		return nil, err
	}
	if p == nil {
		return nil, core.WrapError(core.ErrProviderUnavailable, errors.New("provider factory returned nil"))
	}
	return p, nil
}

// fail logs err and makes sure it carries a retrieval code. Errors that
// already have one pass through unchanged.
func (s *Service) fail(op string, err error) error {
	if core.Code(err) == "" {
		err = core.WrapError(core.ErrNetworkFailure, err)
	}
	s.logger.Warn("quote retrieval failed",
		zap.String("operation", op),
		zap.String("symbol", s.opts.Symbol),
		zap.String("error_code", core.Code(err)),
		zap.Error(err),
	)
	return err
}

func (s *Service) observe(name, op string, start time.Time, err error) {
	if s.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(core.Code(err))
		if outcome == "" {
			outcome = "unknown"
		}
	}
	s.recorder.RecordProviderCall(name, op, outcome, time.Since(start).Seconds())
}
