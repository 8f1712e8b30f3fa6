// Package indicator 为 K 线图计算均线等叠加指标。
package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// DefaultMAPeriods K 线图默认叠加的均线周期。
var DefaultMAPeriods = []int{5, 10, 20}

// Overlay 一条与输入序列逐点对齐的叠加线。
// 前 period-1 个点没有足够样本，置 nil，前端画图时留空。
type Overlay struct {
	Name   string     `json:"name"`
	Period int        `json:"period"`
	Points []*float64 `json:"points"`
}

// MovingAverages 对收盘序列计算一组简单均线。
// 输出与 closes 逐点对齐，长度不足的周期返回整条空线。
func MovingAverages(closes []float64, periods []int) []Overlay {
	if len(periods) == 0 {
		periods = DefaultMAPeriods
	}
	overlays := make([]Overlay, 0, len(periods))
	for _, period := range periods {
		overlays = append(overlays, Overlay{
			Name:   fmt.Sprintf("MA%d", period),
			Period: period,
			Points: maSeries(closes, period),
		})
	}
	return overlays
}

// maSeries 返回与输入对齐的 SMA 序列。TALib 用 0 填充暖机段，
// 这里按下标截掉暖机段而不是按值判零，价格本身可以合法接近 0。
func maSeries(closes []float64, period int) []*float64 {
	out := make([]*float64, len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	raw := talib.Sma(closes, period)
	for i := period - 1; i < len(raw); i++ {
		v := raw[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		rounded := round4(v)
		out[i] = &rounded
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
