package portfolioapi

import (
	"fmt"
	"time"

	"assetsearch/internal/catalog"
	"assetsearch/internal/pricing"

	"github.com/shopspring/decimal"
)

// QuoteResponse is the single canonical body of GET /quotes/<symbol>.
// Price accepts a JSON number or a numeric string.
type QuoteResponse struct {
	Symbol   string          `json:"symbol"`   // e.g., "AAPL"
	Price    decimal.Decimal `json:"price"`    // latest traded price
	Currency string          `json:"currency"` // ISO 4217, may be empty
	AsOf     time.Time       `json:"as_of"`    // RFC 3339
}

func (r QuoteResponse) toQuote() pricing.Quote {
	return pricing.Quote{
		Symbol:   r.Symbol,
		Price:    r.Price,
		Currency: r.Currency,
		AsOf:     r.AsOf,
	}
}

// AssetListResponse is the body of GET /assets: a bare JSON array of records.
type AssetListResponse []catalog.AssetRecord

// APIError is returned for any non-200 response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portfolio api error: status %d: %s", e.StatusCode, e.Body)
}
