package polygon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/internal/market"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	src, err := New(Config{
		RESTBaseURL:     srv.URL,
		APIKey:          "secret",
		Timeframes:      []string{"1m", "5m", "1d"},
		Limit:           2,
		RateLimitPerMin: 60 * 1000,
	})
	require.NoError(t, err)
	src.now = func() time.Time { return time.Date(2024, 3, 8, 20, 0, 0, 0, time.UTC) }
	return src
}

func TestFetchCandlesFallbackChain(t *testing.T) {
	var paths []string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		switch {
		case strings.Contains(r.URL.Path, "/range/1/minute/"):
			_, _ = w.Write([]byte(`{"status":"OK","resultsCount":0}`))
		case strings.Contains(r.URL.Path, "/range/5/minute/"):
			_, _ = w.Write([]byte(`{"status":"OK","results":[
				{"t":1000,"o":1,"h":2,"l":0.5,"c":1.5,"v":10},
				{"t":2000,"o":1.5,"h":2,"l":1,"c":1.8,"v":11},
				{"t":3000,"o":1.8,"h":2.2,"l":1.7,"c":2.1,"v":12}
			]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	candles, err := src.FetchCandles(context.Background(), "aapl")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, market.Candle{Time: 2000, Open: 1.5, High: 2, Low: 1, Close: 1.8, Volume: 11}, candles[0])
	assert.Equal(t, int64(3000), candles[1].Time)
	require.Len(t, paths, 2)
	assert.True(t, strings.HasPrefix(paths[0], "/v2/aggs/ticker/AAPL/range/1/minute/2024-03-01/2024-03-08"))
}

func TestFetchCandlesAllEmpty(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","results":[]}`))
	})
	_, err := src.FetchCandles(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, market.ErrEmptyCandleSet)
}

func TestFetchCandlesUpstreamFailure(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":"ERROR","error":"rate limited"}`))
	})
	_, err := src.FetchCandles(context.Background(), "AAPL")
	require.ErrorIs(t, err, market.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "rate limited")

	bad := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":`))
	})
	_, err = bad.FetchCandles(context.Background(), "AAPL")
	assert.ErrorIs(t, err, market.ErrSourceUnavailable)
}

func TestSearchSymbols(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/reference/tickers", r.URL.Path)
		assert.Equal(t, "NV", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte(`{"results":[{"ticker":"NVDA","name":"NVIDIA Corporation"},{"name":"missing ticker"}]}`))
	})
	got, err := src.SearchSymbols(context.Background(), "nv")
	require.NoError(t, err)
	assert.Equal(t, []market.SymbolMatch{{Symbol: "NVDA", Name: "NVIDIA Corporation"}}, got)

	empty, err := src.SearchSymbols(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFetchCandlesRejectsMalformedAggregates(t *testing.T) {
	payloads := map[string]string{
		"string and null fields": `{"status":"OK","results":[{"t":1000,"o":"x","h":null}]}`,
		"missing close":          `{"status":"OK","results":[{"t":1000,"o":1,"h":2,"l":0.5,"v":10}]}`,
		"zero close":             `{"status":"OK","results":[{"t":1000,"o":1,"h":2,"l":0.5,"c":0,"v":10}]}`,
		"negative volume":        `{"status":"OK","results":[{"t":1000,"o":1,"h":2,"l":0.5,"c":1.5,"v":-1}]}`,
	}
	for name, body := range payloads {
		t.Run(name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			candles, err := src.FetchCandles(context.Background(), "AAPL")
			assert.ErrorIs(t, err, market.ErrSourceUnavailable)
			assert.Nil(t, candles)
		})
	}
}
