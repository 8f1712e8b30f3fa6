package config

// Config 是 TradeWise 的主配置载体。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	DB        DBConfig        `mapstructure:"db"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Report    ReportConfig    `mapstructure:"report"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Path        string `mapstructure:"path"`
	SyncLogPath string `mapstructure:"sync_log_path"`
}

// SyncConfig 控制行情同步行为。
type SyncConfig struct {
	StartDate      string `mapstructure:"start_date"`      // YYYYMMDD，历史拉取起点
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 单个数据源请求超时
	Concurrency    int    `mapstructure:"concurrency"`     // 批量同步并发上限
	AutoSync       bool   `mapstructure:"auto_sync"`       // 按 interval 周期同步 watchlist
	Interval       string `mapstructure:"interval"`        // "1h"/"1d" 等
	BinanceRESTURL string `mapstructure:"binance_rest_url"`
}

type WatchlistConfig struct {
	Path string `mapstructure:"path"`
}

type ReportConfig struct {
	Enabled bool `mapstructure:"enabled"`
	WidthPx int  `mapstructure:"width_px"`
}
