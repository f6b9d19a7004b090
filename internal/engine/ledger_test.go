package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buy(sym string, qty float64) Order  { return Order{Symbol: sym, Side: SideBuy, Qty: qty} }
func sell(sym string, qty float64) Order { return Order{Symbol: sym, Side: SideSell, Qty: qty} }

func TestLedgerWeightedAverageCost(t *testing.T) {
	l := newLedger(100000)
	fills := []struct{ qty, price float64 }{{10, 100}, {5, 110}, {7.5, 95.5}, {2, 120}}
	var notional, total float64
	for _, f := range fills {
		require.NoError(t, l.apply(buy("AAPL", f.qty), f.price))
		notional += f.qty * f.price
		total += f.qty
	}
	snap := l.snapshot(100)
	require.Len(t, snap.Positions, 1)
	assert.InDelta(t, notional/total, snap.Positions[0].AvgPrice, 1e-9)
	assert.InDelta(t, total, snap.Positions[0].Qty, 1e-12)
	assert.InDelta(t, 100000-notional, snap.Balance, 1e-9)
	assert.Zero(t, snap.RealizedPnL)
}

func TestLedgerPartialAndFullSell(t *testing.T) {
	l := newLedger(100000)
	require.NoError(t, l.apply(buy("AAPL", 10), 100))
	require.NoError(t, l.apply(sell("AAPL", 4), 110))

	snap := l.snapshot(110)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, 6.0, snap.Positions[0].Qty)
	assert.Equal(t, 100.0, snap.Positions[0].AvgPrice)
	assert.Equal(t, 60.0, snap.Positions[0].UnrealizedPnL)
	assert.Equal(t, 40.0, snap.RealizedPnL)
	assert.Equal(t, 100000-1000+440.0, snap.Balance)

	require.NoError(t, l.apply(sell("AAPL", 6), 90))
	snap = l.snapshot(90)
	assert.Empty(t, snap.Positions)
	assert.Equal(t, 40.0-60.0, snap.RealizedPnL)
	assert.Equal(t, 100000-1000+440+540.0, snap.Balance)
}

func TestLedgerRejectionsLeaveStateUnchanged(t *testing.T) {
	l := newLedger(1000)
	require.NoError(t, l.apply(buy("AAPL", 5), 100))
	before := l.snapshot(100)

	err := l.apply(buy("AAPL", 6), 100)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, before, l.snapshot(100))

	err = l.apply(sell("MSFT", 1), 100)
	assert.ErrorIs(t, err, ErrNoPosition)
	assert.Equal(t, before, l.snapshot(100))

	err = l.apply(sell("AAPL", 5.5), 100)
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.Equal(t, before, l.snapshot(100))
}

func TestLedgerBuyExactBalanceAllowed(t *testing.T) {
	l := newLedger(1000)
	require.NoError(t, l.apply(buy("AAPL", 10), 100))
	assert.Zero(t, l.snapshot(100).Balance)
}

func TestLedgerReset(t *testing.T) {
	l := newLedger(100000)
	require.NoError(t, l.apply(buy("AAPL", 10), 100))
	require.NoError(t, l.apply(sell("AAPL", 5), 120))
	l.reset()
	snap := l.snapshot(0)
	assert.Equal(t, 100000.0, snap.Balance)
	assert.Zero(t, snap.RealizedPnL)
	assert.Empty(t, snap.Positions)
}

func TestOrderNormalize(t *testing.T) {
	cases := []struct {
		name  string
		order Order
		ok    bool
	}{
		{"lowercase side", Order{Symbol: " aapl ", Side: "buy", Qty: 1}, true},
		{"missing symbol", Order{Side: SideBuy, Qty: 1}, false},
		{"missing side", Order{Symbol: "AAPL", Qty: 1}, false},
		{"bad side", Order{Symbol: "AAPL", Side: "HOLD", Qty: 1}, false},
		{"zero qty", Order{Symbol: "AAPL", Side: SideSell, Qty: 0}, false},
		{"negative qty", Order{Symbol: "AAPL", Side: SideSell, Qty: -2}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.order.normalize()
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, "AAPL", got.Symbol)
				assert.Equal(t, SideBuy, got.Side)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestLedgerRejectsInvalidPrice(t *testing.T) {
	l := newLedger(100000)
	for _, px := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := l.apply(buy("AAPL", 10), px)
		assert.ErrorIs(t, err, ErrMarketNotReady, "price %v", px)
	}
	snap := l.snapshot(0)
	assert.Equal(t, 100000.0, snap.Balance)
	assert.Empty(t, snap.Positions)
}
