// Package sync 负责把外部行情灌进 Price Store：数据源择优、
// 行级校验、追加式入库。行情只增不改，部分成功的前缀照常提交。
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradewise/internal/logger"
	"tradewise/internal/market"
	"tradewise/internal/store"
	"tradewise/internal/store/synclog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Deps 同步服务的外部依赖。
type Deps struct {
	Store   store.Store
	Journal *synclog.Store

	// 各资产类别的数据源，按优先级排列
	StockSources  []market.Source
	FundSources   []market.Source
	CryptoSources []market.Source

	StartDate   time.Time     // 历史拉取起点
	Timeout     time.Duration // 单标的同步超时
	Concurrency int           // SyncAll 并发上限
}

type Service struct {
	deps  Deps
	locks *keyedMutex
}

// Result 单标的一次同步的结果。
type Result struct {
	RunID   string `json:"run_id"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Source  string `json:"source"`
	Rows    int    `json:"rows_synced"`
	Dropped int    `json:"rows_dropped"`
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("sync service requires a store")
	}
	if deps.StartDate.IsZero() {
		deps.StartDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Minute
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	return &Service{deps: deps, locks: newKeyedMutex()}, nil
}

// SyncSymbol 同步单只标的。name 为空时先查展示名，查不到则中止：
// 没有名称的资产不会进入估值结果，继续同步没有意义。
func (s *Service) SyncSymbol(ctx context.Context, symbol, assetType, name string) (Result, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Result{}, fmt.Errorf("symbol is required")
	}
	kind := market.ParseAssetType(assetType)
	runID := uuid.NewString()

	// 同一标的串行写入，跨标的互不阻塞
	unlock := s.locks.lock(symbol)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	result, err := s.syncLocked(ctx, runID, symbol, kind, name)
	if journalErr := s.journal(ctx, runID, symbol, kind, result, err); journalErr != nil {
		logger.Warnf("sync journal write failed for %s: %v", symbol, journalErr)
	}
	return result, err
}

func (s *Service) syncLocked(ctx context.Context, runID, symbol string, kind market.AssetType, name string) (Result, error) {
	asset, err := s.deps.Store.EnsureAsset(ctx, symbol, string(kind))
	if err != nil {
		return Result{}, err
	}
	if name == "" {
		name = asset.Name
	}
	if name == "" {
		name, err = s.resolveName(ctx, symbol, kind)
		if err != nil {
			return Result{}, fmt.Errorf("failed to resolve name for %s, sync aborted: %w", symbol, err)
		}
	}
	if asset.Name == "" {
		if err := s.deps.Store.UpdateAssetName(ctx, asset.ID, name); err != nil {
			return Result{}, err
		}
	}

	rows, source, dropped, err := s.fetchRows(ctx, symbol, kind)
	if err != nil {
		return Result{}, err
	}
	inserted, err := s.deps.Store.UpsertPricePoints(ctx, asset.ID, rows)
	if err != nil {
		// 已提交的批次保留，报告失败即可
		return Result{RunID: runID, Symbol: symbol, Name: name, Source: source, Rows: inserted, Dropped: dropped},
			fmt.Errorf("persisting prices for %s failed after %d rows: %w", symbol, inserted, err)
	}
	if err := s.deps.Store.MarkAssetSynced(ctx, asset.ID, source, inserted); err != nil {
		logger.Warnf("marking asset %s synced failed: %v", symbol, err)
	}
	logger.Infof("synced %s via %s: %d new rows (%d dropped as invalid)", symbol, source, inserted, dropped)
	return Result{RunID: runID, Symbol: symbol, Name: name, Source: source, Rows: inserted, Dropped: dropped}, nil
}

// fetchRows 按优先级尝试数据源，返回第一份可用的合并行情。
func (s *Service) fetchRows(ctx context.Context, symbol string, kind market.AssetType) ([]market.Row, string, int, error) {
	var sources []market.Source
	switch kind {
	case market.AssetFund:
		sources = s.deps.FundSources
	case market.AssetCrypto:
		sources = s.deps.CryptoSources
	default:
		sources = s.deps.StockSources
	}
	if len(sources) == 0 {
		return nil, "", 0, fmt.Errorf("no market data source configured for asset type %q", kind)
	}
	var lastErr error
	for _, src := range sources {
		rows, dropped, err := fetchAllBases(ctx, src, symbol, s.deps.StartDate)
		if err != nil {
			logger.Warnf("source %s failed for %s: %v", src.Name(), symbol, err)
			lastErr = err
			continue
		}
		return rows, src.Name(), dropped, nil
	}
	return nil, "", 0, fmt.Errorf("all data sources failed for %s: %w", symbol, lastErr)
}

// fetchAllBases 向同一数据源请求三套口径。数据源缺某口径时
// 由 MergeBases 用已有口径回填；raw 和 qfq 全都拿不到才算失败。
func fetchAllBases(ctx context.Context, src market.Source, symbol string, start time.Time) ([]market.Row, int, error) {
	raw, rawErr := src.FetchDaily(ctx, symbol, market.AdjustRaw, start)
	qfq, qfqErr := src.FetchDaily(ctx, symbol, market.AdjustQfq, start)
	if rawErr != nil && qfqErr != nil {
		return nil, 0, fmt.Errorf("raw: %v; qfq: %w", rawErr, qfqErr)
	}
	hfq, hfqErr := src.FetchDaily(ctx, symbol, market.AdjustHfq, start)
	if hfqErr != nil {
		logger.Debugf("source %s has no hfq for %s: %v", src.Name(), symbol, hfqErr)
	}
	rows := market.MergeBases(raw, qfq, hfq)
	rows, dropped := market.ValidateRows(rows)
	if len(rows) == 0 {
		return nil, dropped, fmt.Errorf("all rows from %s were invalid", src.Name())
	}
	return rows, dropped, nil
}

func (s *Service) resolveName(ctx context.Context, symbol string, kind market.AssetType) (string, error) {
	var sources []market.Source
	switch kind {
	case market.AssetFund:
		sources = s.deps.FundSources
	case market.AssetCrypto:
		sources = s.deps.CryptoSources
	default:
		sources = s.deps.StockSources
	}
	var lastErr error
	for _, src := range sources {
		resolver, ok := src.(market.NameResolver)
		if !ok {
			continue
		}
		name, err := resolver.ResolveName(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		if name != "" {
			return name, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no name resolver available")
	}
	return "", lastErr
}

// SyncEntry 批量同步的一项。
type SyncEntry struct {
	Symbol    string
	AssetType string
	Name      string
}

// SyncAll 并发同步一组标的。单个标的失败只记日志，不影响其余标的；
// 返回值汇总失败个数。
func (s *Service) SyncAll(ctx context.Context, entries []SyncEntry) ([]Result, error) {
	group := new(errgroup.Group)
	group.SetLimit(s.deps.Concurrency)

	results := make([]Result, len(entries))
	errs := make([]error, len(entries))
	for i, entry := range entries {
		i, entry := i, entry
		group.Go(func() error {
			res, err := s.SyncSymbol(ctx, entry.Symbol, entry.AssetType, entry.Name)
			results[i] = res
			errs[i] = err
			return nil
		})
	}
	_ = group.Wait()

	ok := results[:0:0]
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			logger.Errorf("sync %s failed: %v", entries[i].Symbol, err)
			continue
		}
		ok = append(ok, results[i])
	}
	if failed > 0 {
		return ok, fmt.Errorf("%d of %d symbols failed to sync", failed, len(entries))
	}
	return ok, nil
}

func (s *Service) journal(ctx context.Context, runID, symbol string, kind market.AssetType, res Result, syncErr error) error {
	if s.deps.Journal == nil {
		return nil
	}
	run := synclog.Run{
		RunID:      runID,
		Symbol:     symbol,
		AssetType:  string(kind),
		Source:     res.Source,
		RowsSynced: res.Rows,
		RowsBad:    res.Dropped,
	}
	if syncErr != nil {
		run.Error = syncErr.Error()
	}
	return s.deps.Journal.Append(ctx, run)
}

// RecentRuns 透出同步流水账，供诊断接口使用。
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]synclog.Run, error) {
	if s.deps.Journal == nil {
		return nil, nil
	}
	return s.deps.Journal.Recent(ctx, limit)
}
