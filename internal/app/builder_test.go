package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	twcfg "tradewise/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *twcfg.Config {
	t.Helper()
	dir := t.TempDir()
	return &twcfg.Config{
		App:  twcfg.AppConfig{Env: "test", LogLevel: "error"},
		HTTP: twcfg.HTTPConfig{Addr: ":0"},
		DB: twcfg.DBConfig{
			Path:        filepath.Join(dir, "investments.db"),
			SyncLogPath: filepath.Join(dir, "sync_runs.db"),
		},
		Sync: twcfg.SyncConfig{StartDate: "20200101", TimeoutSeconds: 5, Concurrency: 2},
	}
}

func TestBuilderAssemblesApp(t *testing.T) {
	app, err := NewAppBuilder(testConfig(t)).Build(context.Background())
	require.NoError(t, err)
	defer app.close()

	assert.NotNil(t, app.store)
	assert.NotNil(t, app.journal)
	assert.NotNil(t, app.server)
	assert.NotNil(t, app.SyncService())
	assert.Nil(t, app.registry, "no watchlist path configured")
}

func TestBuilderSkipsJournalWithoutPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB.SyncLogPath = ""
	app, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer app.close()
	assert.Nil(t, app.journal)
}

func TestBuilderRejectsBadStartDate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.StartDate = "2020-01-01"
	_, err := NewAppBuilder(cfg).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_date")
}

func TestParseStartDate(t *testing.T) {
	got, err := parseStartDate("20240102")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	zero, err := parseStartDate("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestBuildSourcesChains(t *testing.T) {
	sources := buildSources(twcfg.SyncConfig{})
	require.Len(t, sources.Stock, 3)
	assert.Equal(t, "eastmoney", sources.Stock[0].Name())
	assert.Equal(t, "tencent", sources.Stock[1].Name())
	assert.Equal(t, "sina", sources.Stock[2].Name())
	require.Len(t, sources.Crypto, 1)
	assert.Equal(t, "binance", sources.Crypto[0].Name())
}
