package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"assetsearch/internal/metrics"
	"assetsearch/logger"

	"go.uber.org/zap"
)

var ErrEmptySymbol = errors.New("pricing: empty symbol")

// Fetcher retrieves the latest quote for a symbol.
type Fetcher interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

type Options struct {
	Timeout         time.Duration // per fetch (default 5s)
	DefaultCurrency string        // used when the backend omits one (default "USD")
}

// Tracker hands out tickets for one selection input. Only the ticket from
// the latest Track call is current. The zero value is ready to use; each
// search input owns its own Tracker so selections in one input never
// supersede another's.
type Tracker struct {
	mu  sync.Mutex
	seq uint64
}

// Track makes symbol the current selection and returns its ticket.
func (tr *Tracker) Track(symbol string) Ticket {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.seq++
	return Ticket{Symbol: symbol, seq: tr.seq, tracker: tr}
}

// Current reports whether t belongs to the latest selection of its tracker.
// A ticket built without a tracker is always current.
func (tr *Tracker) Current(t Ticket) bool {
	if t.tracker == nil {
		return true
	}
	if t.tracker != tr {
		return false
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return t.seq == tr.seq
}

// Ticket identifies one selection made through a Tracker.
type Ticket struct {
	Symbol  string
	seq     uint64
	tracker *Tracker
}

// Current reports whether t is still the latest selection of its input.
func (t Ticket) Current() bool {
	if t.tracker == nil {
		return true
	}
	return t.tracker.Current(t)
}

// Enricher prices selected assets. It makes a single attempt per selection
// and drops results for selections that have since been superseded within
// the same input. One Enricher is shared by every input in a process.
type Enricher struct {
	fetcher Fetcher
	opts    Options
	logger  *zap.Logger
}

func NewEnricher(fetcher Fetcher, opts Options, log *zap.Logger) *Enricher {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	return &Enricher{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.OrNop(log).Named("pricing"),
	}
}

// FetchPrice fetches one quote for symbol. No retry.
func (e *Enricher) FetchPrice(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, ErrEmptySymbol
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	q, err := e.fetcher.GetQuote(ctx, symbol)
	metrics.QuoteFetchTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return Quote{}, fmt.Errorf("fetch price %s: %w", symbol, err)
	}

	if q.Symbol == "" {
		q.Symbol = symbol
	}
	if q.Currency == "" {
		q.Currency = e.opts.DefaultCurrency
	}
	return q, nil
}

// Enrich prices t's symbol and passes the outcome to deliver, unless a later
// Track on t's tracker has superseded t by the time the fetch returns. A
// failed fetch is delivered as an Update with Err set and no Quote.
func (e *Enricher) Enrich(ctx context.Context, t Ticket, deliver func(Update)) {
	q, err := e.FetchPrice(ctx, t.Symbol)

	if !t.Current() {
		metrics.QuoteStaleDropped.Inc()
		e.logger.Debug("dropping superseded quote", zap.String("symbol", t.Symbol))
		return
	}

	if err != nil {
		e.logger.Warn("price unavailable", zap.String("symbol", t.Symbol), zap.Error(err))
		deliver(Update{Symbol: t.Symbol, Err: err})
		return
	}
	deliver(Update{Symbol: t.Symbol, Quote: &q})
}
