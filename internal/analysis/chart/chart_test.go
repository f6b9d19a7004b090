package chart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/internal/analysis/indicator"
	"papersim/internal/market"
)

func TestRenderProducesHTML(t *testing.T) {
	candles := []market.Candle{
		{Time: 60_000, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Time: 120_000, Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 120},
		{Time: 180_000, Open: 11.5, High: 11.8, Low: 10.8, Close: 11, Volume: 90},
	}
	rep, err := indicator.ComputeAll("AAPL", candles, indicator.Settings{EMAFast: 2, EMASlow: 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "AAPL", candles, rep))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "AAPL")
	assert.Contains(t, html, "echarts")
}

func TestRenderRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, "AAPL", nil, indicator.Report{}))
}

func TestToLineDataAlignsRight(t *testing.T) {
	got := toLineData([]float64{1, 2}, 4)
	require.Len(t, got, 4)
	assert.Nil(t, got[0].Value)
	assert.Nil(t, got[1].Value)
	assert.Equal(t, 1.0, got[2].Value)
	assert.Equal(t, 2.0, got[3].Value)

	clipped := toLineData([]float64{1, 2, 3}, 2)
	assert.Equal(t, 3.0, clipped[1].Value)
}
