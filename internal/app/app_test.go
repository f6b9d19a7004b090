package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brcfg "papersim/internal/config"
	"papersim/internal/engine"
	"papersim/internal/gateway/binance"
	"papersim/internal/gateway/mock"
	"papersim/internal/gateway/polygon"
	"papersim/internal/market"
	"papersim/internal/symbols"
)

func testConfig(t *testing.T) *brcfg.Config {
	t.Helper()
	cfg, err := brcfg.Default()
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.App.HTTPAddr = "127.0.0.1:0"
	cfg.Replay.TickIntervalMs = 10
	cfg.Cache.Enabled = true
	cfg.Cache.Path = filepath.Join(dir, "candles.db")
	cfg.Journal.Enabled = true
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	return cfg
}

func TestBuildWiresEngineAndStores(t *testing.T) {
	cfg := testConfig(t)
	src := mock.New(mock.WithSeed(7), mock.WithBars(5))
	app, err := NewAppBuilder(cfg, WithSource(src)).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.NotNil(t, app.Engine())
	require.NotNil(t, app.Summary)
	assert.Contains(t, app.Summary.String(), "mock")
	assert.Contains(t, app.Summary.String(), cfg.Journal.Path)
	assert.Len(t, app.closers, 2)

	info, err := app.Engine().StartSession(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", info.Symbol)
	assert.Equal(t, 5, info.Total)

	app.Engine().Step()
	_, err = app.Engine().PlaceOrder(context.Background(), engine.Order{Symbol: "AAPL", Side: engine.SideBuy, Qty: 1})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.http.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/fills", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"AAPL"`)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Enabled = false
	app, err := NewAppBuilder(cfg, WithSource(mock.New(mock.WithSeed(1), mock.WithBars(3)))).Build(context.Background())
	require.NoError(t, err)

	_, err = app.Engine().StartSession(context.Background(), "MSFT")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return app.Engine().Session().Exhausted() }, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Empty(t, app.closers)
}

func TestBuildMarketSourceKinds(t *testing.T) {
	cfg, err := brcfg.Default()
	require.NoError(t, err)

	src, err := buildMarketSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "mock", src.Name())

	cfg.Market.Sources = []brcfg.MarketSource{{Name: "poly", Kind: "polygon", Enabled: true, RESTBaseURL: "http://127.0.0.1:1", APIKey: "k", RateLimitPerMin: 5}}
	cfg.Market.ActiveSource = "poly"
	src, err = buildMarketSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "polygon", src.Name())

	cfg.Market.Sources = []brcfg.MarketSource{{Name: "bn", Kind: "binance", Enabled: true, RESTBaseURL: "http://127.0.0.1:1"}}
	cfg.Market.ActiveSource = "bn"
	src, err = buildMarketSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "binance", src.Name())

	cfg.Market.Sources = []brcfg.MarketSource{{Name: "x", Kind: "ftx", Enabled: true}}
	cfg.Market.ActiveSource = "x"
	_, err = buildMarketSource(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildSearcher(t *testing.T) {
	cfg, err := brcfg.Default()
	require.NoError(t, err)
	src := mock.New()

	s, desc, err := buildSearcher(cfg, src)
	require.NoError(t, err)
	assert.IsType(t, &symbols.Static{}, s)
	assert.Equal(t, "catalog:builtin", desc)

	cfg.Symbols.Source = "market"
	s, desc, err = buildSearcher(cfg, src)
	require.NoError(t, err)
	assert.Equal(t, market.SymbolSearcher(src), s)
	assert.True(t, strings.HasPrefix(desc, "market:"))

	cfg.Symbols.Source = "catalog"
	cfg.Symbols.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, _, err = buildSearcher(cfg, src)
	assert.Error(t, err)
}

func TestBuildMarketSourcePassesTuning(t *testing.T) {
	cfg, err := brcfg.Default()
	require.NoError(t, err)

	cfg.Market.Sources = []brcfg.MarketSource{{Name: "poly", Kind: "polygon", Enabled: true, RESTBaseURL: "http://127.0.0.1:1", APIKey: "k", MinLookbackHours: 72}}
	cfg.Market.ActiveSource = "poly"
	src, err := buildMarketSource(context.Background(), cfg)
	require.NoError(t, err)
	poly, ok := src.(*polygon.Source)
	require.True(t, ok)
	assert.Equal(t, 72*time.Hour, poly.Settings().MinLookback)

	cfg.Market.Sources = []brcfg.MarketSource{{Name: "bn", Kind: "binance", Enabled: true, RESTBaseURL: "http://127.0.0.1:1", ExchangeInfoTTLSeconds: 90}}
	cfg.Market.ActiveSource = "bn"
	src, err = buildMarketSource(context.Background(), cfg)
	require.NoError(t, err)
	bn, ok := src.(*binance.Source)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, bn.Settings().ExchangeInfoTTL)
}
