// Package report 把组合净值与个股行情渲染成图：go-echarts 出 HTML，
// 机器上有无头浏览器时再截成 PNG，没有就退回 HTML。
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"tradewise/internal/analysis/indicator"
	"tradewise/internal/portfolio"
	"tradewise/internal/store"
)

// ImageResult 渲染产物。PNG 为空时调用方应回退到 HTML。
type ImageResult struct {
	PNG      []byte
	HTML     []byte
	Filename string
}

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorEquity        = "#3b82f6"
	colorMA5           = "#fbbf24"
	colorMA10          = "#22d3ee"
	colorMA20          = "#f472b6"

	defaultWidthPx = 1600
	curveHeightPx  = 600
	klineHeightPx  = 600
)

// Renderer 图表渲染器。WidthPx<=0 时用默认宽度。
type Renderer struct {
	WidthPx int
}

func (r *Renderer) width() int {
	if r == nil || r.WidthPx <= 0 {
		return defaultWidthPx
	}
	return r.WidthPx
}

// RenderEquityCurve 渲染净值曲线。points 必须按日期升序。
func (r *Renderer) RenderEquityCurve(ctx context.Context, points []portfolio.CurvePoint) (ImageResult, error) {
	if len(points) == 0 {
		return ImageResult{}, fmt.Errorf("equity curve is empty, import transactions and sync prices first")
	}
	html, err := r.buildEquityHTML(points)
	if err != nil {
		return ImageResult{}, err
	}
	out := ImageResult{HTML: html, Filename: "equity_curve.png"}
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		// 无 Chrome 的环境退回 HTML
		return out, nil
	}
	png, err := renderHTMLToPNG(ctx, html, r.width(), curveHeightPx+80)
	if err != nil {
		return out, nil
	}
	out.PNG = png
	return out, nil
}

// RenderKline 渲染单只标的的 K 线加均线叠加图。
func (r *Renderer) RenderKline(ctx context.Context, symbol, name string, prices []store.PricePoint) (ImageResult, error) {
	if len(prices) == 0 {
		return ImageResult{}, fmt.Errorf("no price history for %s", symbol)
	}
	html, err := r.buildKlineHTML(symbol, name, prices)
	if err != nil {
		return ImageResult{}, err
	}
	out := ImageResult{HTML: html, Filename: fmt.Sprintf("%s_kline.png", strings.ToLower(symbol))}
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return out, nil
	}
	png, err := renderHTMLToPNG(ctx, html, r.width(), klineHeightPx+80)
	if err != nil {
		return out, nil
	}
	out.PNG = png
	return out, nil
}

func (r *Renderer) buildEquityHTML(points []portfolio.CurvePoint) ([]byte, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", r.width()),
			Height:          fmt.Sprintf("%dpx", curveHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         "Portfolio Equity",
			Subtitle:      fmt.Sprintf("%s ~ %s", points[0].Time, points[len(points)-1].Time),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	x := make([]string, len(points))
	data := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = p.Time
		data[i] = opts.LineData{Value: round(p.Value, 2)}
	}
	line.SetXAxis(x)
	line.AddSeries("Equity", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Renderer) buildKlineHTML(symbol, name string, prices []store.PricePoint) ([]byte, error) {
	minPrice, maxPrice := priceBounds(prices)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", r.width()),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", strings.ToUpper(symbol), name),
			Subtitle:      "前复权日线",
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	x := make([]string, len(prices))
	data := make([]opts.KlineData, len(prices))
	closes := make([]float64, len(prices))
	for i, p := range prices {
		x[i] = p.Date
		data[i] = opts.KlineData{Value: [4]float64{p.QfqOpen, p.QfqClose, p.QfqLow, p.QfqHigh}}
		closes[i] = p.QfqClose
	}
	kline.SetXAxis(x)
	kline.AddSeries("Price", data)

	maLine := buildMALine(closes)
	maLine.SetXAxis(x)
	kline.Overlap(maLine)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(kline)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildMALine(closes []float64) *charts.Line {
	line := charts.NewLine()
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	colors := map[string]string{"MA5": colorMA5, "MA10": colorMA10, "MA20": colorMA20}
	for _, overlay := range indicator.MovingAverages(closes, nil) {
		line.AddSeries(overlay.Name, toLineData(overlay.Points),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colors[overlay.Name], Width: 2}))
	}
	return line
}

func toLineData(points []*float64) []opts.LineData {
	out := make([]opts.LineData, len(points))
	for i, p := range points {
		if p == nil {
			out[i] = opts.LineData{Value: nil}
			continue
		}
		out[i] = opts.LineData{Value: *p}
	}
	return out
}

func priceBounds(prices []store.PricePoint) (minVal, maxVal float64) {
	if len(prices) == 0 {
		return 0, 0
	}
	minVal = prices[0].QfqLow
	maxVal = prices[0].QfqHigh
	for _, p := range prices {
		if p.QfqLow < minVal {
			minVal = p.QfqLow
		}
		if p.QfqHigh > maxVal {
			maxVal = p.QfqHigh
		}
	}
	return minVal, maxVal
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable 探测一次无头浏览器，结果进程内缓存。
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
