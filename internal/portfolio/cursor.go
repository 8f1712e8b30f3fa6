package portfolio

import "tradewise/internal/store"

// priceCursor 在按日期升序的行情序列上单向推进，重复调用
// advance 的总代价摊还为 O(len(points))。游标属于单次计算，
// 不在并发调用间共享。
type priceCursor struct {
	points []store.PricePoint
	idx    int
	cur    int // 最近一个 date ≤ 已推进日期的下标；-1 表示还没有
}

func newPriceCursor(points []store.PricePoint) *priceCursor {
	return &priceCursor{points: points, cur: -1}
}

// advance 推进到 date，返回最近一个 date ≤ 给定日期的价格点。
// 传入的日期必须不小于上一次调用的日期。
func (c *priceCursor) advance(date string) (store.PricePoint, bool) {
	for c.idx < len(c.points) && c.points[c.idx].Date <= date {
		c.cur = c.idx
		c.idx++
	}
	if c.cur < 0 {
		return store.PricePoint{}, false
	}
	return c.points[c.cur], true
}
