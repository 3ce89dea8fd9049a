package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"assetsearch/internal/pricing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrQuoteNotFound = errors.New("postgres: quote not found")

// InsertQuote stores q. A second observation for the same symbol and as-of
// time is skipped.
func (p *PostgresClient) InsertQuote(ctx context.Context, q pricing.Quote) error {
	row := ToQuoteRow(q)
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "as_of"},
		},
		DoNothing: true,
	}).Create(&row)

	if tx.Error != nil {
		return fmt.Errorf("insert quote %s: %w", row.Symbol, tx.Error)
	}
	return nil
}

// LatestQuote returns the newest stored quote for symbol.
func (p *PostgresClient) LatestQuote(ctx context.Context, symbol string) (pricing.Quote, error) {
	var row QuoteRow
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", strings.ToUpper(symbol)).
		Order("as_of DESC").
		First(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pricing.Quote{}, ErrQuoteNotFound
	}
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("latest quote %s: %w", symbol, err)
	}
	return row.ToQuote(), nil
}
