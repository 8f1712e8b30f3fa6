// Package sina 新浪行情兜底数据源：只有不复权日线。
package sina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradewise/internal/market"

	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://money.finance.sina.com.cn"

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

func (s *Source) Name() string { return "sina" }

func (s *Source) FetchDaily(ctx context.Context, symbol string, adjust market.AdjustBasis, start time.Time) ([]market.Bar, error) {
	if adjust != market.AdjustRaw {
		return nil, fmt.Errorf("sina: adjusted basis not available")
	}
	q := url.Values{}
	q.Set("symbol", prefixedSymbol(symbol))
	q.Set("scale", "240") // 日线
	q.Set("ma", "no")
	q.Set("datalen", "10000")
	rawURL := s.cfg.BaseURL + "/quotes_service/api/json_v2.php/CN_MarketData.getKLineData?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sina request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sina returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	rows := gjson.ParseBytes(body)
	if !rows.IsArray() {
		return nil, fmt.Errorf("sina: empty kline payload for %s", symbol)
	}
	bars := make([]market.Bar, 0, len(rows.Array()))
	for _, row := range rows.Array() {
		date, err := time.Parse("2006-01-02", row.Get("day").String())
		if err != nil {
			continue
		}
		if date.Before(start) {
			continue
		}
		bars = append(bars, market.Bar{
			Date:   date,
			Open:   row.Get("open").Float(),
			High:   row.Get("high").Float(),
			Low:    row.Get("low").Float(),
			Close:  row.Get("close").Float(),
			Volume: row.Get("volume").Float(),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("sina: no parsable klines for %s", symbol)
	}
	return bars, nil
}

func prefixedSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if strings.HasPrefix(symbol, "0") || strings.HasPrefix(symbol, "3") {
		return "sz" + symbol
	}
	return "sh" + symbol
}
