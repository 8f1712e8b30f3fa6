// Package portfolio 是账本与估值引擎：把已持久化的流水和行情
// 还原成持仓、配置占比与逐日净值曲线。所有计算都在一份
// store.Snapshot 上进行，天然与并发写隔离。
package portfolio

import (
	"math"
	"sort"
	"time"

	"tradewise/internal/store"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Engine 在一份一致性快照上做纯计算，不持有任何连接。
type Engine struct {
	snap *store.Snapshot
	now  func() time.Time
}

// Option 调整引擎行为（目前仅用于测试注入时钟）。
type Option func(*Engine)

// WithNow 注入"今天"的时钟。
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(snap *store.Snapshot, opts ...Option) *Engine {
	e := &Engine{snap: snap, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Engine) today() string {
	return e.now().Format(dateLayout)
}

// HoldingsAsOf 返回截至 date（含当日）的签名持仓量，键为资产 ID。
// 卖出量超过买入量会产生负持仓：这是需要暴露给调用方的数据质量
// 信号，引擎不做纠正。
func (e *Engine) HoldingsAsOf(date string) map[int64]float64 {
	holdings := make(map[int64]float64)
	for _, tx := range e.snap.Transactions {
		if tx.Date > date {
			break // 流水已按日期升序
		}
		applyTx(holdings, tx)
	}
	return holdings
}

func applyTx(holdings map[int64]float64, tx store.Transaction) {
	switch tx.Side {
	case "buy":
		holdings[tx.AssetID] += tx.Quantity
	case "sell":
		holdings[tx.AssetID] -= tx.Quantity
	}
}

// CurrentHoldings 返回今天的持仓，滤掉已清仓和负持仓（展示视图）。
// 需要完整诊断视图时用 HoldingsAsOf。
func (e *Engine) CurrentHoldings() map[int64]float64 {
	raw := e.HoldingsAsOf(e.today())
	out := make(map[int64]float64, len(raw))
	for id, qty := range raw {
		if qty > 0 {
			out[id] = qty
		}
	}
	return out
}

// Summarize 计算当前持仓的市值与占比。
// 没有展示名称的资产视为元数据不完整，不进入结果；
// 查不到价格的资产按 0 价计入（近似而非报错）。
func (e *Engine) Summarize() Summary {
	holdings := e.CurrentHoldings()
	today := e.today()
	summary := Summary{Items: []SummaryItem{}}
	if len(holdings) == 0 {
		return summary
	}

	ids := make([]int64, 0, len(holdings))
	for id := range holdings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return e.snap.Assets[ids[i]].Symbol < e.snap.Assets[ids[j]].Symbol
	})

	total := decimal.Zero
	values := make([]decimal.Decimal, 0, len(ids))
	for _, id := range ids {
		asset := e.snap.Assets[id]
		if asset.Name == "" {
			continue
		}
		qty := holdings[id]
		price := 0.0
		cursor := newPriceCursor(e.snap.Prices[id])
		if p, ok := cursor.advance(today); ok {
			price = p.QfqClose
		}
		value := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price))
		total = total.Add(value)
		values = append(values, value)
		summary.Items = append(summary.Items, SummaryItem{
			Symbol:   asset.Symbol,
			Name:     asset.Name,
			Quantity: sanitize(qty),
			Price:    sanitize(price),
			Value:    sanitize(value.InexactFloat64()),
		})
	}

	hundred := decimal.NewFromInt(100)
	for i := range summary.Items {
		if total.IsPositive() {
			pct := values[i].Div(total).Mul(hundred)
			summary.Items[i].Percentage = sanitize(pct.InexactFloat64())
		}
		// total == 0 时占比保持 0，避免除零
	}
	summary.TotalValue = sanitize(total.InexactFloat64())
	return summary
}

// EquityCurve 沿价格日历做一次升序扫描，重建组合逐日总市值。
// 日历取全部行情日期的并集，下限为首笔交易日，上限为今天；
// 无流水时曲线为空。
func (e *Engine) EquityCurve() []CurvePoint {
	txs := e.snap.Transactions
	if len(txs) == 0 {
		return []CurvePoint{}
	}
	floor := txs[0].Date
	today := e.today()
	calendar := e.priceCalendar(floor, today)

	curve := make([]CurvePoint, 0, len(calendar))
	holdings := make(map[int64]float64)
	cursors := make(map[int64]*priceCursor)
	txIdx := 0

	for _, day := range calendar {
		// 应用截至当日的全部流水；游标只进不退，每笔至多应用一次。
		for txIdx < len(txs) && txs[txIdx].Date <= day {
			applyTx(holdings, txs[txIdx])
			txIdx++
		}
		value := 0.0
		for id, qty := range holdings {
			if qty == 0 {
				continue
			}
			cursor, ok := cursors[id]
			if !ok {
				cursor = newPriceCursor(e.snap.Prices[id])
				cursors[id] = cursor
			}
			// 当日无行情时沿用最近一个 ≤ 当日的价格；完全没有历史
			// 价格的资产对当日市值贡献 0。
			if p, ok := cursor.advance(day); ok {
				value += qty * p.QfqClose
			}
		}
		curve = append(curve, CurvePoint{Time: day, Value: sanitize(value)})
	}
	return curve
}

// priceCalendar 返回 [floor, ceil] 区间内所有出现过行情的日期，升序去重。
func (e *Engine) priceCalendar(floor, ceil string) []string {
	seen := make(map[string]struct{})
	for _, points := range e.snap.Prices {
		for _, p := range points {
			if p.Date < floor || p.Date > ceil {
				continue
			}
			seen[p.Date] = struct{}{}
		}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// sanitize 把 inf/NaN 归一为 0：下游 JSON 消费方无法表示非有限数。
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
