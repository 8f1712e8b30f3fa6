package model

import (
	"gorm.io/datatypes"
)

// AssetModel 资产主档。symbol 全局唯一，导入或同步时隐式创建，不做删除。
type AssetModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;uniqueIndex"`
	Name          string         `gorm:"column:name"`
	AssetType     string         `gorm:"column:asset_type"` // stock | fund | crypto
	Meta          datatypes.JSON `gorm:"column:meta;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (AssetModel) TableName() string { return "assets" }

// TransactionModel 买卖流水。去重键 (asset_id, date, side, quantity, price)
// 由唯一索引保证，重复导入在存储层直接落空。
type TransactionModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	AssetID       int64   `gorm:"column:asset_id;index;uniqueIndex:idx_tx_dedup,priority:1"`
	Date          string  `gorm:"column:date;uniqueIndex:idx_tx_dedup,priority:2"` // YYYY-MM-DD
	Side          string  `gorm:"column:side;uniqueIndex:idx_tx_dedup,priority:3"` // buy | sell
	Quantity      float64 `gorm:"column:quantity;uniqueIndex:idx_tx_dedup,priority:4"`
	Price         float64 `gorm:"column:price;uniqueIndex:idx_tx_dedup,priority:5"`
	Fees          float64 `gorm:"column:fees"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (TransactionModel) TableName() string { return "transactions" }

// PricePointModel 单日行情，(asset_id, date) 唯一。三套复权口径并存。
type PricePointModel struct {
	ID      int64  `gorm:"column:id;primaryKey"`
	AssetID int64  `gorm:"column:asset_id;index;uniqueIndex:idx_price_asset_date,priority:1"`
	Date    string `gorm:"column:date;uniqueIndex:idx_price_asset_date,priority:2"` // YYYY-MM-DD

	Open  float64 `gorm:"column:open"`
	High  float64 `gorm:"column:high"`
	Low   float64 `gorm:"column:low"`
	Close float64 `gorm:"column:close"`

	QfqOpen  float64 `gorm:"column:qfq_open"`
	QfqHigh  float64 `gorm:"column:qfq_high"`
	QfqLow   float64 `gorm:"column:qfq_low"`
	QfqClose float64 `gorm:"column:qfq_close"`

	AdjOpen  float64 `gorm:"column:adj_open"`
	AdjHigh  float64 `gorm:"column:adj_high"`
	AdjLow   float64 `gorm:"column:adj_low"`
	AdjClose float64 `gorm:"column:adj_close"`

	Volume        float64 `gorm:"column:volume"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (PricePointModel) TableName() string { return "price_history" }
