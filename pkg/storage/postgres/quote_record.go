package postgres

import (
	"strings"
	"time"

	"assetsearch/internal/pricing"

	"github.com/shopspring/decimal"
)

// QuoteRow is a price observation. The newest AsOf per symbol is the quote
// the dev backend serves.
type QuoteRow struct {
	ID uint `gorm:"primaryKey"`

	Symbol string    `gorm:"type:text;not null;index:idx_quote_symbol_asof,unique"`
	AsOf   time.Time `gorm:"not null;index:idx_quote_symbol_asof,unique"`

	Price    decimal.Decimal `gorm:"type:numeric;not null"`
	Currency string          `gorm:"type:varchar(3)"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (QuoteRow) TableName() string {
	return "quote_record"
}

func ToQuoteRow(q pricing.Quote) QuoteRow {
	return QuoteRow{
		Symbol:   strings.ToUpper(q.Symbol),
		AsOf:     q.AsOf.UTC(),
		Price:    q.Price,
		Currency: strings.ToUpper(q.Currency),
	}
}

func (r QuoteRow) ToQuote() pricing.Quote {
	return pricing.Quote{
		Symbol:   r.Symbol,
		Price:    r.Price,
		Currency: r.Currency,
		AsOf:     r.AsOf,
	}
}
