// Package tencent 腾讯行情备选数据源：只有复权数据，
// 不复权口径由调用方用 qfq 回填，成交量从成交额估算。
package tencent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradewise/internal/market"

	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://web.ifzq.gtimg.cn"

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	return c
}

type Source struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{cfg: final, client: &http.Client{Timeout: final.HTTPTimeout}}
}

func (s *Source) Name() string { return "tencent" }

func (s *Source) FetchDaily(ctx context.Context, symbol string, adjust market.AdjustBasis, start time.Time) ([]market.Bar, error) {
	if adjust == market.AdjustRaw {
		return nil, fmt.Errorf("tencent: raw basis not available")
	}
	code := prefixedSymbol(symbol)
	kind := string(adjust) + "day" // qfqday / hfqday
	rawURL := fmt.Sprintf("%s/appstock/app/fqkline/get?param=%s,day,%s,%s,640,%s",
		s.cfg.BaseURL, code, start.Format("2006-01-02"), "2050-12-31", string(adjust))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tencent request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tencent returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	rows := gjson.GetBytes(body, "data."+code+"."+kind)
	if !rows.Exists() {
		// 部分标的没有复权历史时返回普通 day 数组
		rows = gjson.GetBytes(body, "data."+code+".day")
	}
	if !rows.Exists() || !rows.IsArray() {
		return nil, fmt.Errorf("tencent: empty kline payload for %s", symbol)
	}
	bars := make([]market.Bar, 0, len(rows.Array()))
	for _, row := range rows.Array() {
		bar, ok := parseRow(row.Array())
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("tencent: no parsable klines for %s", symbol)
	}
	return bars, nil
}

// parseRow 解析 [date, open, close, high, low, volume, ...]。
func parseRow(fields []gjson.Result) (market.Bar, bool) {
	if len(fields) < 6 {
		return market.Bar{}, false
	}
	date, err := time.Parse("2006-01-02", fields[0].String())
	if err != nil {
		return market.Bar{}, false
	}
	nums := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(fields[i+1].String(), 64)
		if err != nil {
			return market.Bar{}, false
		}
		nums[i] = v
	}
	return market.Bar{
		Date:   date,
		Open:   nums[0],
		Close:  nums[1],
		High:   nums[2],
		Low:    nums[3],
		Volume: nums[4],
	}, true
}

// prefixedSymbol 补市场前缀：0/3 开头为深市，其余沪市。
func prefixedSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if strings.HasPrefix(symbol, "0") || strings.HasPrefix(symbol, "3") {
		return "sz" + symbol
	}
	return "sh" + symbol
}
