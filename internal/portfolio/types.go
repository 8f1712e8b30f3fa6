package portfolio

// SummaryItem 当前持仓的单项估值。
type SummaryItem struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// Summary 持仓估值与配置占比。
type Summary struct {
	Items      []SummaryItem `json:"items"`
	TotalValue float64       `json:"total_value"`
}

// CurvePoint 净值曲线上的一个点。Time 为 ISO 日期串。
type CurvePoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}
