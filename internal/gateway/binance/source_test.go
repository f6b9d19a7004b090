package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/internal/market"
)

const klinesPayload = `[
 [1700000000000,"100.0","101.0","99.0","100.5","10.0",1700000299999,"1000.0",5,"5.0","500.0","0"],
 [1700000300000,"100.5","102.0","100.0","101.5","12.5",1700000599999,"1200.0",6,"6.0","600.0","0"]
]`

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	src, err := New(Config{RESTBaseURL: srv.URL, Timeframes: []string{"1m", "5m"}, Limit: 10})
	require.NoError(t, err)
	src.now = func() time.Time { return time.UnixMilli(1800000000000) }
	return src
}

func TestFetchCandlesFallsBackToNextInterval(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		if r.URL.Query().Get("interval") == "1m" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(klinesPayload))
	})
	candles, err := src.FetchCandles(context.Background(), "btc/usdt")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, market.Candle{Time: 1700000000000, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10}, candles[0])
	assert.Equal(t, 101.5, candles[1].Close)
}

func TestFetchCandlesMapsErrors(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})
	_, err := src.FetchCandles(context.Background(), "NOPE")
	assert.ErrorIs(t, err, market.ErrEmptyCandleSet)

	down := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":-1000,"msg":"unknown"}`))
	})
	_, err = down.FetchCandles(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, market.ErrSourceUnavailable)
}

func TestSearchSymbolsCachesExchangeInfo(t *testing.T) {
	var hits atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		hits.Add(1)
		_, _ = w.Write([]byte(`{"symbols":[
			{"symbol":"ETHUSDT","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT"},
			{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT"},
			{"symbol":"BTCDOMUSDT","status":"SETTLING","baseAsset":"BTCDOM","quoteAsset":"USDT"}
		]}`))
	})
	got, err := src.SearchSymbols(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, []market.SymbolMatch{{Symbol: "BTCUSDT", Name: "BTC/USDT"}}, got)

	got, err = src.SearchSymbols(context.Background(), "E")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), hits.Load())

	empty, err := src.SearchSymbols(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDropUnclosed(t *testing.T) {
	kl := []market.Candle{{Time: 0}, {Time: 60_000}}
	assert.Len(t, dropUnclosed(kl, time.Minute, time.UnixMilli(90_000)), 1)
	assert.Len(t, dropUnclosed(kl, time.Minute, time.UnixMilli(200_000)), 2)
}

func TestFetchCandlesRejectsMalformedKlines(t *testing.T) {
	payloads := map[string]string{
		"non numeric": `[[1700000000000,"abc","101.0","99.0","100.5","10.0",1700000299999,"1000.0",5,"5.0","500.0","0"]]`,
		"nan close":   `[[1700000000000,"100.0","101.0","99.0","NaN","10.0",1700000299999,"1000.0",5,"5.0","500.0","0"]]`,
		"zero close":  `[[1700000000000,"100.0","101.0","99.0","0","10.0",1700000299999,"1000.0",5,"5.0","500.0","0"]]`,
	}
	for name, body := range payloads {
		t.Run(name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			candles, err := src.FetchCandles(context.Background(), "BTCUSDT")
			assert.ErrorIs(t, err, market.ErrSourceUnavailable)
			assert.Nil(t, candles)
		})
	}
}
