package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/internal/market"
)

func trend(n int, start, step float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := start + step*float64(i) + math.Sin(float64(i))*0.1
		out[i] = market.Candle{Time: int64(i) * 60_000, Open: c - 0.05, High: c + 0.2, Low: c - 0.2, Close: c, Volume: 100 + float64(i)}
	}
	return out
}

func TestComputeAllEmptyInput(t *testing.T) {
	_, err := ComputeAll("AAPL", nil, Settings{})
	assert.Error(t, err)
}

func TestComputeAllShortSeriesSkipsIndicators(t *testing.T) {
	rep, err := ComputeAll("AAPL", trend(5, 100, 1), Settings{})
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Count)
	assert.Contains(t, rep.Values, "obv")
	assert.NotContains(t, rep.Values, "ema_slow")
	assert.NotContains(t, rep.Values, "rsi")
	assert.NotContains(t, rep.Values, "macd")
	assert.NotEmpty(t, rep.Warnings)
}

func TestComputeAllUptrend(t *testing.T) {
	rep, err := ComputeAll("AAPL", trend(120, 100, 0.5), Settings{})
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)
	for _, key := range []string{"ema_fast", "ema_slow", "rsi", "macd", "atr", "obv"} {
		assert.Contains(t, rep.Values, key)
	}
	assert.Equal(t, "above", rep.Values["ema_slow"].State)
	assert.Equal(t, "overbought", rep.Values["rsi"].State)
	assert.Equal(t, "positive", rep.Values["obv"].State)
	assert.Greater(t, rep.Values["atr"].Latest, 0.0)
}
