package postgres

import (
	"context"
	"fmt"

	"assetsearch/internal/catalog"

	"gorm.io/gorm/clause"
)

// UpsertAssets inserts the records, replacing rows that share an asset id.
func (p *PostgresClient) UpsertAssets(ctx context.Context, assets []catalog.AssetRecord) error {
	if len(assets) == 0 {
		return nil
	}

	rows := make([]AssetRow, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, ToAssetRow(a))
	}

	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"symbol", "name", "exchange", "asset_type", "updated_at"}),
	}).CreateInBatches(rows, 500)
	if tx.Error != nil {
		return fmt.Errorf("upsert assets: %w", tx.Error)
	}
	return nil
}

// ListAssets returns up to limit assets in insertion order. limit <= 0 means all.
func (p *PostgresClient) ListAssets(ctx context.Context, limit int) ([]catalog.AssetRecord, error) {
	q := p.DB.WithContext(ctx).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []AssetRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	out := make([]catalog.AssetRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToAssetRecord())
	}
	return out, nil
}
