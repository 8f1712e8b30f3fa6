package store

import (
	"context"

	"tradewise/internal/market"
)

// Asset 资产记录。
type Asset struct {
	ID        int64  `json:"id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	AssetType string `json:"asset_type"`
}

// Transaction 单笔买卖记录。Date 为 ISO 日期串（YYYY-MM-DD），
// 该格式字典序与时间序一致，排序与比较直接用字符串完成。
type Transaction struct {
	ID       int64   `json:"id"`
	AssetID  int64   `json:"asset_id"`
	Date     string  `json:"date"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Fees     float64 `json:"fees"`
}

// PricePoint 单日行情，三套复权口径并存。
type PricePoint struct {
	AssetID int64
	Date    string

	Open  float64
	High  float64
	Low   float64
	Close float64

	QfqOpen  float64
	QfqHigh  float64
	QfqLow   float64
	QfqClose float64

	AdjOpen  float64
	AdjHigh  float64
	AdjLow   float64
	AdjClose float64

	Volume float64
}

// Snapshot 是引擎计算用的一致性读视图：同一个读事务内加载的
// 全量资产、流水与行情。
type Snapshot struct {
	Assets       map[int64]Asset
	Transactions []Transaction          // date ASC, id ASC
	Prices       map[int64][]PricePoint // 每只资产按 date ASC
}

// Store 持久层接口。写入端的去重由存储层唯一约束原子保证。
type Store interface {
	EnsureAsset(ctx context.Context, symbol, assetType string) (Asset, error)
	UpdateAssetName(ctx context.Context, id int64, name string) error
	MarkAssetSynced(ctx context.Context, id int64, source string, rows int) error
	Assets(ctx context.Context) ([]Asset, error)
	AssetBySymbol(ctx context.Context, symbol string) (Asset, bool, error)

	// InsertTransaction 尝试写入一笔流水；命中去重键时返回 false 且不报错。
	InsertTransaction(ctx context.Context, tx Transaction) (bool, error)
	Transactions(ctx context.Context) ([]Transaction, error)
	TransactionsByAsset(ctx context.Context, assetID int64) ([]Transaction, error)

	// UpsertPricePoints 追加行情，(asset_id, date) 冲突时落空，返回实际插入行数。
	UpsertPricePoints(ctx context.Context, assetID int64, rows []market.Row) (int, error)
	PricesByAsset(ctx context.Context, assetID int64) ([]PricePoint, error)

	Snapshot(ctx context.Context) (*Snapshot, error)
	Close() error
}
