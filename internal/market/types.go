package market

import (
	"context"
	"time"
)

// AdjustBasis 表示复权口径。
type AdjustBasis string

const (
	AdjustRaw AdjustBasis = ""    // 不复权
	AdjustQfq AdjustBasis = "qfq" // 前复权
	AdjustHfq AdjustBasis = "hfq" // 后复权
)

// AssetType 资产类别。
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetFund   AssetType = "fund"
	AssetCrypto AssetType = "crypto"
)

// ParseAssetType 宽松解析资产类别，未知输入回退为 stock。
func ParseAssetType(s string) AssetType {
	switch AssetType(s) {
	case AssetFund:
		return AssetFund
	case AssetCrypto:
		return AssetCrypto
	default:
		return AssetStock
	}
}

// Bar 是某一复权口径下的单日 OHLCV。
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Row 把三套复权口径按日期对齐后的一行。数据源缺某口径时由调用方回填。
type Row struct {
	Date time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	QfqOpen  float64
	QfqHigh  float64
	QfqLow   float64
	QfqClose float64

	HfqOpen  float64
	HfqHigh  float64
	HfqLow   float64
	HfqClose float64

	Volume float64
}

// Series 是一只标的的完整历史行情。
type Series struct {
	Symbol string
	Name   string
	Rows   []Row
}

// Source 按日线拉取历史行情。start 为含起始日，返回值按日期升序。
type Source interface {
	// Name 返回数据源标识，用于日志与同步记录。
	Name() string
	// FetchDaily 拉取 symbol 自 start 起的全部日线。不支持请求口径时返回错误。
	FetchDaily(ctx context.Context, symbol string, adjust AdjustBasis, start time.Time) ([]Bar, error)
}

// NameResolver 查询标的展示名称。
type NameResolver interface {
	ResolveName(ctx context.Context, symbol string) (string, error)
}
