package config

import (
	"fmt"
	"strings"

	"tradewise/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultHTTPAddr      = ":8001"
	defaultDBPath        = "data/investments.db"
	defaultSyncLogPath   = "data/sync_runs.db"
	defaultSyncStart     = "20000101"
	defaultSyncTimeout   = 30
	defaultSyncWorkers   = 4
	defaultSyncInterval  = "1d"
	defaultBinanceREST   = "https://api.binance.com"
	defaultWatchlistPath = "configs/watchlist.yaml"
	defaultReportWidth   = 1200
)

// Load 读取并校验配置文件。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch 监听配置文件变更，目前仅热更新日志级别。
func Watch(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			logger.Errorf("config reload failed: %v", err)
			return
		}
		level := v.GetString("app.log_level")
		logger.SetLevel(level)
		logger.Infof("config reloaded, log level now %q", level)
	})
	v.WatchConfig()
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}
	if c.DB.Path == "" {
		c.DB.Path = defaultDBPath
	}
	if c.DB.SyncLogPath == "" {
		c.DB.SyncLogPath = defaultSyncLogPath
	}
	if c.Sync.StartDate == "" {
		c.Sync.StartDate = defaultSyncStart
	}
	if c.Sync.TimeoutSeconds <= 0 {
		c.Sync.TimeoutSeconds = defaultSyncTimeout
	}
	if c.Sync.Concurrency <= 0 {
		c.Sync.Concurrency = defaultSyncWorkers
	}
	if c.Sync.Interval == "" {
		c.Sync.Interval = defaultSyncInterval
	}
	if c.Sync.BinanceRESTURL == "" {
		c.Sync.BinanceRESTURL = defaultBinanceREST
	}
	if c.Watchlist.Path == "" {
		c.Watchlist.Path = defaultWatchlistPath
	}
	if c.Report.WidthPx <= 0 {
		c.Report.WidthPx = defaultReportWidth
	}
}

func validate(c *Config) error {
	if len(c.Sync.StartDate) != 8 {
		return fmt.Errorf("sync.start_date must be YYYYMMDD, got %q", c.Sync.StartDate)
	}
	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown app.log_level %q", c.App.LogLevel)
	}
	return nil
}
