package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAveragesAlignment(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	overlays := MovingAverages(closes, []int{3})
	require.Len(t, overlays, 1)

	ma := overlays[0]
	assert.Equal(t, "MA3", ma.Name)
	require.Len(t, ma.Points, len(closes), "overlay must align with input")

	// 暖机段留空
	assert.Nil(t, ma.Points[0])
	assert.Nil(t, ma.Points[1])
	require.NotNil(t, ma.Points[2])
	assert.InDelta(t, 2, *ma.Points[2], 1e-9)
	require.NotNil(t, ma.Points[5])
	assert.InDelta(t, 5, *ma.Points[5], 1e-9)
}

func TestMovingAveragesShortSeries(t *testing.T) {
	overlays := MovingAverages([]float64{10, 11}, []int{5})
	require.Len(t, overlays, 1)
	require.Len(t, overlays[0].Points, 2)
	assert.Nil(t, overlays[0].Points[0])
	assert.Nil(t, overlays[0].Points[1])
}

func TestMovingAveragesDefaultPeriods(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	overlays := MovingAverages(closes, nil)
	require.Len(t, overlays, 3)
	assert.Equal(t, "MA5", overlays[0].Name)
	assert.Equal(t, "MA10", overlays[1].Name)
	assert.Equal(t, "MA20", overlays[2].Name)
}
