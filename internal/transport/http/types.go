package httpapi

import "tradewise/internal/analysis/indicator"

// ChartPayload K 线接口的响应体，前端直接喂给图表库。
type ChartPayload struct {
	Symbol   string              `json:"symbol"`
	Name     string              `json:"name"`
	Adjust   string              `json:"adjust"`
	Dates    []string            `json:"dates"`
	Kline    [][4]float64        `json:"kline"` // [open, close, low, high]
	Volume   []float64           `json:"volume"`
	Overlays []indicator.Overlay `json:"overlays"`
	Markers  []TradeMarker       `json:"markers"`
}

// TradeMarker 在 K 线上标注一笔买卖。
type TradeMarker struct {
	Time     string `json:"time"`
	Side     string `json:"side"`
	Label    string `json:"label"`
	Position string `json:"position"`
	Color    string `json:"color"`
	Shape    string `json:"shape"`
}
