package market

import (
	"math"
	"sort"
	"time"
)

// MergeBases 将三套口径的日线按日期外连接成 Row 序列。
// 缺失 qfq/hfq 的日期用 raw 回填；缺失 raw 的日期用 qfq 回填。
// 结果按日期升序。
func MergeBases(raw, qfq, hfq []Bar) []Row {
	idx := make(map[int64]*Row)
	key := func(t time.Time) int64 {
		y, m, d := t.Date()
		return int64(y)*10000 + int64(m)*100 + int64(d)
	}
	at := func(t time.Time) *Row {
		k := key(t)
		r, ok := idx[k]
		if !ok {
			r = &Row{Date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
			idx[k] = r
		}
		return r
	}
	for _, b := range raw {
		r := at(b.Date)
		r.Open, r.High, r.Low, r.Close = b.Open, b.High, b.Low, b.Close
		r.Volume = b.Volume
	}
	for _, b := range qfq {
		r := at(b.Date)
		r.QfqOpen, r.QfqHigh, r.QfqLow, r.QfqClose = b.Open, b.High, b.Low, b.Close
		if r.Volume == 0 && b.Volume > 0 {
			r.Volume = b.Volume
		}
	}
	for _, b := range hfq {
		r := at(b.Date)
		r.HfqOpen, r.HfqHigh, r.HfqLow, r.HfqClose = b.Open, b.High, b.Low, b.Close
	}
	out := make([]Row, 0, len(idx))
	for _, r := range idx {
		if r.Close == 0 && r.QfqClose != 0 {
			r.Open, r.High, r.Low, r.Close = r.QfqOpen, r.QfqHigh, r.QfqLow, r.QfqClose
		}
		if r.QfqClose == 0 && r.Close != 0 {
			r.QfqOpen, r.QfqHigh, r.QfqLow, r.QfqClose = r.Open, r.High, r.Low, r.Close
		}
		if r.HfqClose == 0 && r.Close != 0 {
			r.HfqOpen, r.HfqHigh, r.HfqLow, r.HfqClose = r.Open, r.High, r.Low, r.Close
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// ValidateRows 丢弃价格非正、非有限或成交量为负的行，返回保留行与丢弃数。
func ValidateRows(rows []Row) ([]Row, int) {
	kept := rows[:0:0]
	dropped := 0
	for _, r := range rows {
		if !rowValid(r) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}

func rowValid(r Row) bool {
	prices := []float64{
		r.Open, r.High, r.Low, r.Close,
		r.QfqOpen, r.QfqHigh, r.QfqLow, r.QfqClose,
		r.HfqOpen, r.HfqHigh, r.HfqLow, r.HfqClose,
	}
	for _, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	if r.Volume < 0 || math.IsNaN(r.Volume) || math.IsInf(r.Volume, 0) {
		return false
	}
	return true
}
