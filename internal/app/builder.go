package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	twcfg "tradewise/internal/config"
	"tradewise/internal/gateway/binance"
	"tradewise/internal/gateway/eastmoney"
	"tradewise/internal/gateway/sina"
	"tradewise/internal/gateway/tencent"
	"tradewise/internal/importer"
	"tradewise/internal/logger"
	"tradewise/internal/market"
	"tradewise/internal/report"
	"tradewise/internal/store"
	"tradewise/internal/store/sqlite"
	"tradewise/internal/store/synclog"
	syncsvc "tradewise/internal/sync"
	httpapi "tradewise/internal/transport/http"
	"tradewise/internal/watchlist"
)

// marketSources 各资产类别的数据源，按优先级排列。
type marketSources struct {
	Stock  []market.Source
	Fund   []market.Source
	Crypto []market.Source
}

type AppBuilder struct {
	cfg *twcfg.Config

	storeFn     func(twcfg.DBConfig) (store.Store, error)
	journalFn   func(twcfg.DBConfig) (*synclog.Store, error)
	sourcesFn   func(twcfg.SyncConfig) marketSources
	watchlistFn func(twcfg.WatchlistConfig) (*watchlist.Registry, error)
	httpFn      func(twcfg.HTTPConfig, *httpapi.Router) (*httpapi.Server, error)

	storeOverride store.Store
}

type AppBuilderOption func(*AppBuilder)

// WithStore 用注入的存储替换默认 sqlite 实现，测试用。
func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) { b.storeOverride = st }
}

func NewAppBuilder(cfg *twcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		storeFn:     buildStore,
		journalFn:   buildJournal,
		sourcesFn:   buildSources,
		watchlistFn: buildWatchlist,
		httpFn:      buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	st := b.storeOverride
	if st == nil {
		var err error
		st, err = b.storeFn(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
	}
	logger.Infof("✓ 数据库就绪: %s", cfg.DB.Path)

	journal, err := b.journalFn(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init sync journal: %w", err)
	}

	sources := b.sourcesFn(cfg.Sync)
	startDate, err := parseStartDate(cfg.Sync.StartDate)
	if err != nil {
		return nil, err
	}
	syncSvc, err := syncsvc.NewService(syncsvc.Deps{
		Store:         st,
		Journal:       journal,
		StockSources:  sources.Stock,
		FundSources:   sources.Fund,
		CryptoSources: sources.Crypto,
		StartDate:     startDate,
		Timeout:       time.Duration(cfg.Sync.TimeoutSeconds) * time.Second,
		Concurrency:   cfg.Sync.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	registry, err := b.watchlistFn(cfg.Watchlist)
	if err != nil {
		return nil, err
	}
	if registry != nil {
		logger.Infof("✓ watchlist 已加载: %d 标的", len(registry.Entries()))
	}

	var renderer *report.Renderer
	if cfg.Report.Enabled {
		renderer = &report.Renderer{WidthPx: cfg.Report.WidthPx}
	}

	router := httpapi.NewRouter(st, syncSvc, importer.NewService(st), renderer)
	server, err := b.httpFn(cfg.HTTP, router)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		store:    st,
		journal:  journal,
		syncSvc:  syncSvc,
		registry: registry,
		server:   server,
	}, nil
}

func buildStore(cfg twcfg.DBConfig) (store.Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return sqlite.NewSqliteStore(cfg.Path)
}

func buildJournal(cfg twcfg.DBConfig) (*synclog.Store, error) {
	path := strings.TrimSpace(cfg.SyncLogPath)
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return synclog.New(path)
}

// buildSources A 股走 东方财富→腾讯→新浪 的降级链，
// 场内基金走东方财富，加密资产走币安。
func buildSources(cfg twcfg.SyncConfig) marketSources {
	em := eastmoney.New(eastmoney.Config{})
	return marketSources{
		Stock:  []market.Source{em, tencent.New(tencent.Config{}), sina.New(sina.Config{})},
		Fund:   []market.Source{em},
		Crypto: []market.Source{binance.New(binance.Config{RESTBaseURL: cfg.BinanceRESTURL})},
	}
}

func buildWatchlist(cfg twcfg.WatchlistConfig) (*watchlist.Registry, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("watchlist 文件不存在，自动同步停用: %s", path)
		return nil, nil
	}
	return watchlist.NewRegistry(path)
}

func buildHTTPServer(cfg twcfg.HTTPConfig, router *httpapi.Router) (*httpapi.Server, error) {
	return httpapi.NewServer(httpapi.ServerConfig{Addr: cfg.Addr, Router: router})
}

func parseStartDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("20060102", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sync.start_date %q, expect YYYYMMDD: %w", raw, err)
	}
	return t, nil
}
