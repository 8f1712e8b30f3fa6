// Package app 负责应用级编排：加载配置→初始化依赖→启动 HTTP 与定时同步。
package app

import (
	"context"
	"fmt"

	twcfg "tradewise/internal/config"
	"tradewise/internal/logger"
	"tradewise/internal/scheduler"
	"tradewise/internal/store"
	"tradewise/internal/store/synclog"
	syncsvc "tradewise/internal/sync"
	httpapi "tradewise/internal/transport/http"
	"tradewise/internal/watchlist"

	"golang.org/x/sync/errgroup"
)

// App 持有组装完成的全部服务。
type App struct {
	cfg      *twcfg.Config
	store    store.Store
	journal  *synclog.Store
	syncSvc  *syncsvc.Service
	registry *watchlist.Registry
	server   *httpapi.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *twcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与自动同步，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("HTTP 服务监听 %s", a.server.Addr())
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.cfg.Sync.AutoSync && a.registry != nil {
		interval, ok := scheduler.ParseIntervalDuration(a.cfg.Sync.Interval)
		if !ok {
			return fmt.Errorf("invalid sync interval %q", a.cfg.Sync.Interval)
		}
		sched := scheduler.NewAlignedScheduler(ctx, interval, 0)
		sched.RunImmediately = true
		group.Go(func() error {
			sched.Start(a.syncWatchlist(ctx))
			return nil
		})
	}

	err := group.Wait()
	a.close()
	return err
}

// SyncService 暴露同步服务，供测试与一次性命令使用。
func (a *App) SyncService() *syncsvc.Service {
	if a == nil {
		return nil
	}
	return a.syncSvc
}

func (a *App) syncWatchlist(ctx context.Context) func() {
	return func() {
		entries := a.registry.Entries()
		if len(entries) == 0 {
			logger.Debugf("watchlist 为空，跳过本轮同步")
			return
		}
		batch := make([]syncsvc.SyncEntry, len(entries))
		for i, e := range entries {
			batch[i] = syncsvc.SyncEntry{Symbol: e.Symbol, AssetType: e.Type, Name: e.Name}
		}
		results, err := a.syncSvc.SyncAll(ctx, batch)
		if err != nil {
			logger.Warnf("watchlist 同步部分失败: %v", err)
		}
		total := 0
		for _, r := range results {
			total += r.Rows
		}
		logger.Infof("watchlist 同步完成: %d 标的成功, 新增 %d 行", len(results), total)
	}
}

func (a *App) close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
