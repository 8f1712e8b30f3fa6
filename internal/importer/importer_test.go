package importer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"tradewise/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *sqlite.SqliteStore) {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st), st
}

const validCSV = `date,symbol,type,quantity,price,fees
2024-01-02,600519,buy,100,1650,5
2024-01-15,600519,buy,50,1600,2.5
2024-06-01,600519,sell,100,1800,9
`

func TestImportCSV(t *testing.T) {
	svc, st := newTestService(t)

	result, err := svc.ImportCSV(context.Background(), strings.NewReader(validCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Zero(t, result.SkippedDuplicates)
	assert.Zero(t, result.FilteredNonTrading)
	assert.Zero(t, result.Malformed)

	txs, err := st.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "2024-01-02", txs[0].Date)
	assert.Equal(t, "buy", txs[0].Side)
	assert.InDelta(t, 5, txs[0].Fees, 1e-9)
}

func TestImportCSVIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.ImportCSV(ctx, strings.NewReader(validCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Imported)

	second, err := svc.ImportCSV(ctx, strings.NewReader(validCSV))
	require.NoError(t, err)
	assert.Zero(t, second.Imported)
	assert.Equal(t, 3, second.SkippedDuplicates)
}

func TestImportCSVFiltersAndCounts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	seed := `date,symbol,type,quantity,price,fees
2024-01-02,600519,buy,100,1650,0
`
	_, err := svc.ImportCSV(ctx, strings.NewReader(seed))
	require.NoError(t, err)

	// 一条 dividend、一条重复 buy、两条有效新行
	batch := `date,symbol,type,quantity,price,fees
2024-03-01,600519,dividend,100,2.5,0
2024-01-02,600519,buy,100,1650,0
2024-04-01,600519,buy,20,1500,1
2024-05-01,000858,buy,200,140,2
`
	result, err := svc.ImportCSV(ctx, strings.NewReader(batch))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.SkippedDuplicates)
	assert.Equal(t, 1, result.FilteredNonTrading)
	assert.Zero(t, result.Malformed)
}

func TestImportCSVMalformedRowsDoNotAbort(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	batch := `date,symbol,type,quantity,price,fees
not-a-date,600519,buy,100,1650,0
2024-01-02,,buy,100,1650,0
2024-01-03,600519,buy,-5,1650,0
2024-01-04,600519,buy,100,abc,0
2024-01-05,600519,buy,100,1700,0
`
	result, err := svc.ImportCSV(ctx, strings.NewReader(batch))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 4, result.Malformed)

	txs, err := st.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "2024-01-05", txs[0].Date)
}

func TestImportCSVAlternateDateFormats(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	batch := `date,symbol,side,quantity,price
2024/01/02,600519,buy,100,1650
20240103,600519,buy,10,1660
`
	result, err := svc.ImportCSV(ctx, strings.NewReader(batch))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	txs, err := st.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "2024-01-02", txs[0].Date)
	assert.Equal(t, "2024-01-03", txs[1].Date)
}

func TestImportCSVCreatesAssetOnFirstSight(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportCSV(ctx, strings.NewReader(validCSV))
	require.NoError(t, err)

	asset, ok, err := st.AssetBySymbol(ctx, "600519")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "stock", asset.AssetType)
	assert.Empty(t, asset.Name) // 名称由行情同步回填
}
