// Package importer 把券商对账单里的交易行灌进账本。
// 单行出错只记数不终止：部分成功是常态，整批回绝才是例外。
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"tradewise/internal/logger"
	"tradewise/internal/store"
)

// Result 一次导入的汇总计数。
type Result struct {
	Status             string `json:"status"`
	TotalRows          int    `json:"total_rows"`
	Imported           int    `json:"imported"`
	SkippedDuplicates  int    `json:"skipped_duplicates"`
	FilteredNonTrading int    `json:"filtered_non_trading"`
	Malformed          int    `json:"malformed"`
}

// Row 解析后的一行交易。
type Row struct {
	Date     string
	Symbol   string
	Side     string
	Quantity float64
	Price    float64
	Fees     float64
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// ImportCSV 读取 CSV（带表头：date,symbol,type,quantity,price,fees）并导入。
// 非 buy/sell 的行（分红、转账、费用单）过滤计数；命中去重键的行跳过计数；
// 字段不合法的行按 malformed 计数。只有读流本身失败才返回错误。
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Result{Status: "error"}, fmt.Errorf("reading csv header failed: %w", err)
	}
	cols := headerIndex(header)

	result := Result{Status: "success"}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 坏行不拖垮整批
			result.TotalRows++
			result.Malformed++
			continue
		}
		result.TotalRows++
		row, err := parseRow(record, cols)
		if err != nil {
			logger.Debugf("import: malformed row skipped: %v", err)
			result.Malformed++
			continue
		}
		if row.Side != "buy" && row.Side != "sell" {
			result.FilteredNonTrading++
			continue
		}
		if err := s.importRow(ctx, row, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Service) importRow(ctx context.Context, row Row, result *Result) error {
	asset, err := s.store.EnsureAsset(ctx, row.Symbol, "stock")
	if err != nil {
		return fmt.Errorf("resolving asset %q failed: %w", row.Symbol, err)
	}
	inserted, err := s.store.InsertTransaction(ctx, store.Transaction{
		AssetID:  asset.ID,
		Date:     row.Date,
		Side:     row.Side,
		Quantity: row.Quantity,
		Price:    row.Price,
		Fees:     row.Fees,
	})
	if err != nil {
		return fmt.Errorf("persisting transaction failed: %w", err)
	}
	if inserted {
		result.Imported++
	} else {
		result.SkippedDuplicates++
	}
	return nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
		if key == "type" {
			key = "side" // 对账单里常叫 type
		}
		cols[key] = i
	}
	return cols
}

func parseRow(record []string, cols map[string]int) (Row, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := normalizeDate(field("date"))
	if err != nil {
		return Row{}, err
	}
	symbol := field("symbol")
	if symbol == "" {
		return Row{}, fmt.Errorf("missing symbol")
	}
	quantity, err := strconv.ParseFloat(field("quantity"), 64)
	if err != nil || quantity <= 0 {
		return Row{}, fmt.Errorf("invalid quantity %q", field("quantity"))
	}
	price, err := strconv.ParseFloat(field("price"), 64)
	if err != nil || price <= 0 {
		return Row{}, fmt.Errorf("invalid price %q", field("price"))
	}
	fees := 0.0
	if raw := field("fees"); raw != "" {
		fees, err = strconv.ParseFloat(raw, 64)
		if err != nil || fees < 0 {
			return Row{}, fmt.Errorf("invalid fees %q", raw)
		}
	}
	return Row{
		Date:     date,
		Symbol:   symbol,
		Side:     strings.ToLower(field("side")),
		Quantity: quantity,
		Price:    price,
		Fees:     fees,
	}, nil
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102"}

func normalizeDate(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}
