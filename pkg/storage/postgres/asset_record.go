package postgres

import (
	"time"

	"assetsearch/internal/catalog"
)

// AssetRow is one catalog entry served by the dev backend.
type AssetRow struct {
	ID uint `gorm:"primaryKey"`

	AssetID   string `gorm:"type:text;not null;uniqueIndex:idx_asset_id"`
	Symbol    string `gorm:"type:text;index:idx_asset_symbol"`
	Name      string `gorm:"type:text"`
	Exchange  string `gorm:"type:varchar(32)"`
	AssetType string `gorm:"type:varchar(32)"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (AssetRow) TableName() string {
	return "asset_record"
}

func ToAssetRow(a catalog.AssetRecord) AssetRow {
	return AssetRow{
		AssetID:   string(a.ID),
		Symbol:    a.Symbol,
		Name:      a.Name,
		Exchange:  a.Exchange,
		AssetType: a.AssetType,
	}
}

func (r AssetRow) ToAssetRecord() catalog.AssetRecord {
	return catalog.AssetRecord{
		ID:        catalog.AssetID(r.AssetID),
		Symbol:    r.Symbol,
		Name:      r.Name,
		Exchange:  r.Exchange,
		AssetType: r.AssetType,
	}
}
