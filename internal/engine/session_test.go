package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/internal/market"
)

func series(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Time: int64(i+1) * 60_000, Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func TestSessionAdvanceRevealsEachBarOnce(t *testing.T) {
	var s session
	_, ok := s.advance()
	assert.False(t, ok, "empty session must stay idle")

	candles := series(1, 2, 3, 4)
	require.NoError(t, s.start("id", "AAPL", candles, time.Now()))
	_, ok = s.currentBar()
	assert.False(t, ok)

	var got []float64
	for i := 0; i < 10; i++ {
		if bar, ok := s.advance(); ok {
			got = append(got, bar.Close)
		}
	}
	assert.Equal(t, []float64{1, 2, 3, 4}, got)
	assert.Equal(t, 4, s.cursor)
	bar, ok := s.currentBar()
	require.True(t, ok)
	assert.Equal(t, 4.0, bar.Close)
	assert.True(t, s.info().Exhausted())
}

func TestSessionStartRejectsBadSeries(t *testing.T) {
	var s session
	require.NoError(t, s.start("first", "AAPL", series(1, 2), time.Now()))
	s.advance()

	err := s.start("second", "MSFT", nil, time.Now())
	assert.ErrorIs(t, err, market.ErrEmptyCandleSet)

	unordered := append(series(1, 2)[1:], series(1)...)
	err = s.start("second", "MSFT", unordered, time.Now())
	assert.ErrorIs(t, err, market.ErrSourceUnavailable)

	assert.Equal(t, "AAPL", s.symbol)
	assert.Equal(t, 1, s.cursor)
}

func TestSessionRevealedIsCopy(t *testing.T) {
	var s session
	require.NoError(t, s.start("id", "AAPL", series(1, 2, 3), time.Now()))
	s.advance()
	s.advance()
	rev := s.revealed()
	require.Len(t, rev, 2)
	rev[0].Close = 99
	assert.Equal(t, 1.0, s.candles[0].Close)
}
