// Package binance 为 crypto 资产提供日线行情。加密资产没有
// 复权概念，三套口径返回同一组数据。
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradewise/internal/market"

	binance "github.com/adshao/go-binance/v2"
)

const klinePageLimit = 1000

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.RESTBaseURL) == "" {
		c.RESTBaseURL = "https://api.binance.com"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	return c
}

// Source 基于 go-binance SDK 实现 market.Source。
type Source struct {
	cfg    Config
	client *binance.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}
}

func (s *Source) Name() string { return "binance" }

// FetchDaily 按 1000 根一页翻到今天。复权口径参数被忽略。
func (s *Source) FetchDaily(ctx context.Context, symbol string, _ market.AdjustBasis, start time.Time) ([]market.Bar, error) {
	cleanSymbol := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
	if cleanSymbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	var out []market.Bar
	cursor := start.UnixMilli()
	for {
		kls, err := s.client.NewKlinesService().
			Symbol(cleanSymbol).
			Interval("1d").
			StartTime(cursor).
			Limit(klinePageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines failed for %s: %w", cleanSymbol, err)
		}
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			openTime := time.UnixMilli(kl.OpenTime).UTC()
			out = append(out, market.Bar{
				Date:   time.Date(openTime.Year(), openTime.Month(), openTime.Day(), 0, 0, 0, 0, time.UTC),
				Open:   parseFloat(kl.Open),
				High:   parseFloat(kl.High),
				Low:    parseFloat(kl.Low),
				Close:  parseFloat(kl.Close),
				Volume: parseFloat(kl.Volume),
			})
		}
		if len(kls) < klinePageLimit {
			break
		}
		cursor = kls[len(kls)-1].CloseTime + 1
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("binance: no klines for %s", cleanSymbol)
	}
	// 最后一根可能还没收盘，丢掉今天的未完结数据
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if last := out[len(out)-1]; !last.Date.Before(today) {
		out = out[:len(out)-1]
	}
	return out, nil
}

// ResolveName 加密资产直接用交易对作为展示名。
func (s *Source) ResolveName(_ context.Context, symbol string) (string, error) {
	clean := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
	if clean == "" {
		return "", fmt.Errorf("symbol is required")
	}
	return clean, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
