// Package eastmoney 从东方财富拉取 A 股与场内基金的日线行情。
// 三套复权口径齐全，是同步链路的首选数据源。
package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradewise/internal/market"

	"github.com/tidwall/gjson"
)

const (
	defaultKlineBaseURL = "https://push2his.eastmoney.com"
	defaultQuoteBaseURL = "https://push2.eastmoney.com"
)

// Config 东方财富网关配置。
type Config struct {
	KlineBaseURL string
	QuoteBaseURL string
	HTTPTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.KlineBaseURL) == "" {
		c.KlineBaseURL = defaultKlineBaseURL
	}
	if strings.TrimSpace(c.QuoteBaseURL) == "" {
		c.QuoteBaseURL = defaultQuoteBaseURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	return c
}

// Source 实现 market.Source 与 market.NameResolver。
type Source struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:    final,
		client: &http.Client{Timeout: final.HTTPTimeout},
	}
}

func (s *Source) Name() string { return "eastmoney" }

// FetchDaily 拉取日线。fqt: 0=不复权 1=前复权 2=后复权。
func (s *Source) FetchDaily(ctx context.Context, symbol string, adjust market.AdjustBasis, start time.Time) ([]market.Bar, error) {
	secid, err := secIDFor(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("secid", secid)
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58")
	q.Set("klt", "101") // 日线
	q.Set("fqt", fqtFor(adjust))
	q.Set("beg", start.Format("20060102"))
	q.Set("end", "20500101")

	body, err := s.get(ctx, s.cfg.KlineBaseURL+"/api/qt/stock/kline/get?"+q.Encode())
	if err != nil {
		return nil, err
	}
	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, fmt.Errorf("eastmoney: empty kline payload for %s", symbol)
	}
	bars := make([]market.Bar, 0, len(klines.Array()))
	for _, line := range klines.Array() {
		bar, ok := parseKline(line.String())
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("eastmoney: no parsable klines for %s", symbol)
	}
	return bars, nil
}

// ResolveName 查询证券简称（data.f58）。
func (s *Source) ResolveName(ctx context.Context, symbol string) (string, error) {
	secid, err := secIDFor(symbol)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("secid", secid)
	q.Set("fields", "f58")
	body, err := s.get(ctx, s.cfg.QuoteBaseURL+"/api/qt/stock/get?"+q.Encode())
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(gjson.GetBytes(body, "data.f58").String())
	if name == "" {
		return "", fmt.Errorf("eastmoney: no name for %s", symbol)
	}
	return name, nil
}

func (s *Source) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eastmoney request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseKline 解析 "日期,开,收,高,低,量,额,..." 形式的一行。
func parseKline(line string) (market.Bar, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return market.Bar{}, false
	}
	date, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return market.Bar{}, false
	}
	open, err1 := strconv.ParseFloat(parts[1], 64)
	closep, err2 := strconv.ParseFloat(parts[2], 64)
	high, err3 := strconv.ParseFloat(parts[3], 64)
	low, err4 := strconv.ParseFloat(parts[4], 64)
	volume, err5 := strconv.ParseFloat(parts[5], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return market.Bar{}, false
	}
	return market.Bar{
		Date: date, Open: open, High: high, Low: low, Close: closep, Volume: volume,
	}, true
}

func fqtFor(adjust market.AdjustBasis) string {
	switch adjust {
	case market.AdjustQfq:
		return "1"
	case market.AdjustHfq:
		return "2"
	default:
		return "0"
	}
}

// secIDFor 组装东财 secid：沪市前缀 1，深市前缀 0。
func secIDFor(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	switch symbol[0] {
	case '5', '6', '9':
		return "1." + symbol, nil
	default:
		return "0." + symbol, nil
	}
}
