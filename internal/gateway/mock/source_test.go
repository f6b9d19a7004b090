package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/internal/market"
)

func TestFetchCandlesShape(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	src := New(WithSeed(42), WithClock(func() time.Time { return now }))

	candles, err := src.FetchCandles(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, candles, 120)
	require.NoError(t, market.ValidateSeries(candles))
	assert.Equal(t, now.UnixMilli()-120*60_000, candles[0].Time)
	assert.Equal(t, now.UnixMilli()-60_000, candles[119].Time)
	for _, c := range candles {
		assert.True(t, c.Open >= 15 && c.Open < 16)
		assert.True(t, c.High >= 16 && c.High < 17)
		assert.True(t, c.Low >= 14 && c.Low < 15)
		assert.True(t, c.Close >= 15 && c.Close < 16)
		assert.True(t, c.Volume >= 0 && c.Volume < 1000)
	}
}

func TestFetchCandlesSeedIsDeterministic(t *testing.T) {
	clock := WithClock(func() time.Time { return time.UnixMilli(0) })
	a, err := New(WithSeed(7), clock, WithBars(5)).FetchCandles(context.Background(), "X")
	require.NoError(t, err)
	b, err := New(WithSeed(7), clock, WithBars(5)).FetchCandles(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSearchUsesBuiltinCatalog(t *testing.T) {
	got, err := New().SearchSymbols(context.Background(), "ts")
	require.NoError(t, err)
	assert.Equal(t, []market.SymbolMatch{{Symbol: "TSLA", Name: "Tesla Inc."}}, got)
}
