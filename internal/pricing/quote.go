package pricing

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Quote is the latest price for one symbol.
type Quote struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"` // ISO 4217 code
	AsOf     time.Time       `json:"as_of"`
}

// Display formats the price in its currency, e.g. "$189.25".
// Unknown currency codes fall back to "<amount> <code>".
func (q Quote) Display() string {
	cur := money.GetCurrency(strings.ToUpper(q.Currency))
	if cur == nil {
		return q.Price.StringFixed(2) + " " + q.Currency
	}
	minor := q.Price.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// Update is what an embedding form receives while a selection is priced:
// first Fetching, then either a Quote or an Err marking the price unavailable.
type Update struct {
	Symbol   string
	Fetching bool
	Quote    *Quote
	Err      error
}

// Available reports whether u carries a usable quote.
func (u Update) Available() bool {
	return !u.Fetching && u.Quote != nil
}
