package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/internal/engine"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRecordsAndListsFills(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, j.RecordSession(ctx, engine.SessionInfo{ID: "s1", Symbol: "AAPL", Total: 3, StartedAt: base}))
	require.NoError(t, j.RecordFill(ctx, engine.Fill{
		ID: "f1", SessionID: "s1", Symbol: "AAPL", Side: engine.SideBuy, Qty: 10, Price: 100,
		BarTime: 60_000, ExecutedAt: base.Add(time.Second),
		Account: engine.AccountSnapshot{Balance: 99000, Positions: []engine.PositionView{{Symbol: "AAPL", Qty: 10, AvgPrice: 100}}},
	}))
	require.NoError(t, j.RecordFill(ctx, engine.Fill{
		ID: "f2", SessionID: "s1", Symbol: "AAPL", Side: engine.SideSell, Qty: 10, Price: 105,
		BarTime: 120_000, ExecutedAt: base.Add(2 * time.Second),
		Account: engine.AccountSnapshot{Balance: 100050, RealizedPnL: 50, Positions: []engine.PositionView{}},
	}))
	require.NoError(t, j.RecordFill(ctx, engine.Fill{SessionID: "s2", Symbol: "MSFT", Side: engine.SideBuy, Qty: 1, Price: 300, ExecutedAt: base}))

	fills, err := j.ListFills(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "f2", fills[0].ID)
	assert.Equal(t, 50.0, fills[0].Account.RealizedPnL)
	assert.Equal(t, engine.SideBuy, fills[1].Side)
	require.Len(t, fills[1].Account.Positions, 1)
	assert.Equal(t, 100.0, fills[1].Account.Positions[0].AvgPrice)

	all, err := j.ListFills(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.NotEmpty(t, all[2].ID, "missing ids are generated")

	limited, err := j.ListFills(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	sessions, err := j.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "AAPL", sessions[0].Symbol)
	assert.Equal(t, 3, sessions[0].Candles)
}
