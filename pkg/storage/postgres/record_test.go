package postgres

import (
	"testing"
	"time"

	"assetsearch/internal/catalog"
	"assetsearch/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAssetRowRoundTrip(t *testing.T) {
	rec := catalog.AssetRecord{ID: "42", Symbol: "BRK.B", Name: "Berkshire Hathaway", Exchange: "NYSE", AssetType: "stock"}

	row := ToAssetRow(rec)
	assert.Equal(t, "42", row.AssetID)
	assert.Zero(t, row.ID, "primary key is left to the database")
	assert.Equal(t, rec, row.ToAssetRecord())
}

func TestToQuoteRowNormalizes(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	q := pricing.Quote{
		Symbol:   "msft",
		Price:    decimal.RequireFromString("411.10"),
		Currency: "usd",
		AsOf:     time.Date(2026, 10, 19, 9, 30, 0, 0, est),
	}

	row := ToQuoteRow(q)
	assert.Equal(t, "MSFT", row.Symbol)
	assert.Equal(t, "USD", row.Currency)
	assert.Equal(t, time.UTC, row.AsOf.Location())
	assert.True(t, row.AsOf.Equal(q.AsOf))

	back := row.ToQuote()
	assert.Equal(t, "MSFT", back.Symbol)
	assert.True(t, back.Price.Equal(q.Price))
}
