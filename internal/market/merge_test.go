package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mk(date string, close float64) Bar {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return Bar{Date: d, Open: close, High: close, Low: close, Close: close, Volume: 10}
}

func TestMergeBasesOuterJoin(t *testing.T) {
	raw := []Bar{mk("2024-01-02", 100), mk("2024-01-03", 101)}
	qfq := []Bar{mk("2024-01-03", 99), mk("2024-01-04", 98)}
	hfq := []Bar{mk("2024-01-02", 200)}

	rows := MergeBases(raw, qfq, hfq)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01-02", rows[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-04", rows[2].Date.Format("2006-01-02"))

	// 01-02：qfq 缺失，由 raw 回填
	assert.InDelta(t, 100, rows[0].QfqClose, 1e-9)
	assert.InDelta(t, 200, rows[0].HfqClose, 1e-9)
	// 01-04：raw 缺失，由 qfq 回填
	assert.InDelta(t, 98, rows[2].Close, 1e-9)
	assert.InDelta(t, 98, rows[2].HfqClose, 1e-9)
}

func TestMergeBasesRawOnly(t *testing.T) {
	rows := MergeBases([]Bar{mk("2024-01-02", 100)}, nil, nil)
	require.Len(t, rows, 1)
	assert.InDelta(t, 100, rows[0].QfqClose, 1e-9)
	assert.InDelta(t, 100, rows[0].HfqClose, 1e-9)
}

func TestValidateRowsDropsBadData(t *testing.T) {
	good := MergeBases([]Bar{mk("2024-01-02", 100)}, nil, nil)[0]
	negative := good
	negative.Close = -1
	nan := good
	nan.QfqHigh = math.NaN()
	inf := good
	inf.HfqLow = math.Inf(1)
	badVolume := good
	badVolume.Volume = -5

	kept, dropped := ValidateRows([]Row{good, negative, nan, inf, badVolume})
	assert.Len(t, kept, 1)
	assert.Equal(t, 4, dropped)
}

func TestValidateRowsAllowsZeroVolume(t *testing.T) {
	row := MergeBases([]Bar{mk("2024-01-02", 100)}, nil, nil)[0]
	row.Volume = 0
	kept, dropped := ValidateRows([]Row{row})
	assert.Len(t, kept, 1)
	assert.Zero(t, dropped)
}

func TestParseAssetType(t *testing.T) {
	assert.Equal(t, AssetStock, ParseAssetType("stock"))
	assert.Equal(t, AssetFund, ParseAssetType("fund"))
	assert.Equal(t, AssetCrypto, ParseAssetType("crypto"))
	assert.Equal(t, AssetStock, ParseAssetType("bogus"))
}
