package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedFetcher blocks each symbol until its gate is closed.
type gatedFetcher struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	quotes map[string]Quote
	errs   map[string]error
	seen   []string
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		gates:  map[string]chan struct{}{},
		quotes: map[string]Quote{},
		errs:   map[string]error{},
	}
}

func (f *gatedFetcher) gate(symbol string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[symbol]
	if !ok {
		g = make(chan struct{})
		f.gates[symbol] = g
	}
	return g
}

func (f *gatedFetcher) open(symbol string) {
	f.mu.Lock()
	g, ok := f.gates[symbol]
	f.mu.Unlock()
	if ok {
		close(g)
	}
}

func (f *gatedFetcher) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	f.mu.Lock()
	f.seen = append(f.seen, symbol)
	_, gated := f.gates[symbol]
	f.mu.Unlock()

	if gated {
		select {
		case <-f.gate(symbol):
		case <-ctx.Done():
			return Quote{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[symbol]; err != nil {
		return Quote{}, err
	}
	return f.quotes[symbol], nil
}

func quote(symbol, price string) Quote {
	return Quote{Symbol: symbol, Price: decimal.RequireFromString(price), Currency: "USD"}
}

// go test -v --run TestFetchPrice
func TestFetchPrice(t *testing.T) {
	f := newGatedFetcher()
	f.quotes["AAPL"] = Quote{Price: decimal.RequireFromString("189.25")}
	e := NewEnricher(f, Options{DefaultCurrency: "EUR"}, nil)

	q, err := e.FetchPrice(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "EUR", q.Currency, "missing currency takes the default")
	assert.True(t, q.Price.Equal(decimal.RequireFromString("189.25")))
	assert.Equal(t, []string{"AAPL"}, f.seen)
}

func TestFetchPriceSingleAttempt(t *testing.T) {
	f := newGatedFetcher()
	f.errs["MSFT"] = errors.New("502 bad gateway")
	e := NewEnricher(f, Options{}, nil)

	_, err := e.FetchPrice(context.Background(), "MSFT")
	require.Error(t, err)
	assert.Len(t, f.seen, 1, "no automatic retry")
}

func TestFetchPriceEmptySymbol(t *testing.T) {
	e := NewEnricher(newGatedFetcher(), Options{}, nil)
	_, err := e.FetchPrice(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptySymbol)
}

func TestEnrichDeliversUnavailableOnFailure(t *testing.T) {
	f := newGatedFetcher()
	f.errs["TSLA"] = errors.New("timeout")
	e := NewEnricher(f, Options{}, nil)

	var tr Tracker
	var got []Update
	e.Enrich(context.Background(), tr.Track("TSLA"), func(u Update) { got = append(got, u) })

	require.Len(t, got, 1)
	assert.Equal(t, "TSLA", got[0].Symbol)
	assert.False(t, got[0].Available())
	assert.Error(t, got[0].Err)
	assert.Nil(t, got[0].Quote)
}

func TestEnrichLatestSelectionWins(t *testing.T) {
	f := newGatedFetcher()
	f.quotes["AAPL"] = quote("AAPL", "189.25")
	f.quotes["MSFT"] = quote("MSFT", "411.10")
	f.gate("AAPL")
	f.gate("MSFT")
	e := NewEnricher(f, Options{}, nil)

	var mu sync.Mutex
	var delivered []Update
	deliver := func(u Update) {
		mu.Lock()
		delivered = append(delivered, u)
		mu.Unlock()
	}

	var tr Tracker
	var wg sync.WaitGroup
	first := tr.Track("AAPL")
	wg.Add(1)
	go func() { defer wg.Done(); e.Enrich(context.Background(), first, deliver) }()

	second := tr.Track("MSFT")
	wg.Add(1)
	go func() { defer wg.Done(); e.Enrich(context.Background(), second, deliver) }()

	assert.False(t, first.Current())
	assert.True(t, second.Current())
	assert.True(t, tr.Current(second))

	// the newer selection resolves first, the superseded one afterwards
	f.open("MSFT")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, time.Second, 5*time.Millisecond)
	f.open("AAPL")
	wg.Wait()

	require.Len(t, delivered, 1)
	assert.Equal(t, "MSFT", delivered[0].Symbol)
	require.True(t, delivered[0].Available())
	assert.Equal(t, "411.1", delivered[0].Quote.Price.String())
}

func TestEnrichSameSymbolReselected(t *testing.T) {
	f := newGatedFetcher()
	f.quotes["AAPL"] = quote("AAPL", "189.25")
	e := NewEnricher(f, Options{}, nil)

	var tr Tracker
	stale := tr.Track("AAPL")
	fresh := tr.Track("AAPL")

	var got []Update
	e.Enrich(context.Background(), stale, func(u Update) { got = append(got, u) })
	assert.Empty(t, got, "an older ticket is stale even for the same symbol")

	e.Enrich(context.Background(), fresh, func(u Update) { got = append(got, u) })
	assert.Len(t, got, 1)
}

// go test -v --run TestEnrichTrackersAreIndependent
func TestEnrichTrackersAreIndependent(t *testing.T) {
	f := newGatedFetcher()
	f.quotes["AAPL"] = quote("AAPL", "189.25")
	f.quotes["MSFT"] = quote("MSFT", "411.10")
	f.gate("AAPL")
	e := NewEnricher(f, Options{}, nil)

	var widgetA, widgetB Tracker
	a := widgetA.Track("AAPL")
	b := widgetB.Track("MSFT")

	assert.True(t, a.Current(), "a selection in another input does not supersede this one")
	assert.True(t, b.Current())
	assert.False(t, widgetB.Current(a), "tickets belong to the tracker that issued them")

	done := make(chan Update, 1)
	go e.Enrich(context.Background(), a, func(u Update) { done <- u })

	var got []Update
	e.Enrich(context.Background(), b, func(u Update) { got = append(got, u) })
	require.Len(t, got, 1)
	assert.Equal(t, "MSFT", got[0].Symbol)

	f.open("AAPL")
	select {
	case u := <-done:
		assert.Equal(t, "AAPL", u.Symbol)
		assert.True(t, u.Available())
	case <-time.After(time.Second):
		t.Fatal("AAPL price was never delivered")
	}
}

func TestTicketWithoutTrackerIsCurrent(t *testing.T) {
	f := newGatedFetcher()
	f.quotes["SPY"] = quote("SPY", "571.40")
	e := NewEnricher(f, Options{}, nil)

	var got []Update
	e.Enrich(context.Background(), Ticket{Symbol: "SPY"}, func(u Update) { got = append(got, u) })
	require.Len(t, got, 1)
	assert.True(t, got[0].Available())
}

func TestQuoteDisplay(t *testing.T) {
	assert.Equal(t, "$189.25", quote("AAPL", "189.25").Display())
	assert.Equal(t, "$0.50", quote("X", "0.499").Display())

	jpy := Quote{Symbol: "7203", Price: decimal.RequireFromString("2890"), Currency: "jpy"}
	assert.NotContains(t, jpy.Display(), "jpy", "known currencies render with their symbol")

	odd := Quote{Symbol: "X", Price: decimal.RequireFromString("1.5"), Currency: "ZZZ"}
	assert.Equal(t, "1.50 ZZZ", odd.Display())
}
