package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"papersim/internal/analysis/indicator"
	brcfg "papersim/internal/config"
	"papersim/internal/engine"
	"papersim/internal/gateway/binance"
	"papersim/internal/gateway/mock"
	"papersim/internal/gateway/polygon"
	"papersim/internal/logger"
	"papersim/internal/market"
	"papersim/internal/pkg/circuit"
	"papersim/internal/store/candlecache"
	"papersim/internal/store/journal"
	"papersim/internal/symbols"
	simhttp "papersim/internal/transport/http/sim"
)

type AppBuilder struct {
	cfg *brcfg.Config

	sourceFn   func(context.Context, *brcfg.Config) (market.Source, error)
	searcherFn func(*brcfg.Config, market.Source) (market.SymbolSearcher, string, error)
	journalFn  func(brcfg.JournalConfig) (*journal.Journal, error)
	httpFn     func(simhttp.ServerConfig) (*simhttp.Server, error)

	sourceOverride market.Source
	now            func() time.Time
}

type AppBuilderOption func(*AppBuilder)

// WithSource 用给定行情源替换配置中的数据源（测试或嵌入使用）。
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceOverride = src
	}
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) {
		b.now = now
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourceFn:   buildMarketSource,
		searcherFn: buildSearcher,
		journalFn:  openJournal,
		httpFn:     simhttp.NewServer,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	app := &App{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	src := b.sourceOverride
	if src == nil {
		var err error
		src, err = b.sourceFn(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	upstreamName := src.Name()

	var cacheState string
	if cfg.Cache.Enabled {
		store, err := candlecache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("打开 K 线缓存失败: %w", err)
		}
		app.closers = append(app.closers, store.Close)
		src = candlecache.NewSource(src, store, cfg.Cache.TTL())
		cacheState = fmt.Sprintf("%s (ttl=%s)", cfg.Cache.Path, cfg.Cache.TTL())
	}

	breaker := circuit.NewCircuitBreaker(upstreamName, cfg.Market.Breaker.Threshold, time.Duration(cfg.Market.Breaker.CooldownSeconds)*time.Second)
	breaker.SetStateChangeHandler(func(name string, from, to circuit.State) {
		logger.Warnf("行情源 %s 熔断状态 %s -> %s", name, from, to)
	})
	guarded := market.NewGuarded(src, breaker)

	searcher, searchDesc, err := b.searcherFn(cfg, guarded)
	if err != nil {
		return nil, err
	}
	if closer, isCloser := searcher.(interface{ Close() error }); isCloser {
		app.closers = append(app.closers, closer.Close)
	}

	var (
		recorder engine.Recorder
		fills    simhttp.FillLister
	)
	journalState := ""
	if cfg.Journal.Enabled {
		j, err := b.journalFn(cfg.Journal)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, j.Close)
		recorder = j
		fills = j
		journalState = cfg.Journal.Path
	}

	app.engine = engine.New(guarded, engine.Options{
		StartingBalance: cfg.Replay.StartingBalance,
		TickInterval:    cfg.Replay.TickInterval(),
		FetchTimeout:    cfg.Market.FetchTimeout(),
		Recorder:        recorder,
		Now:             b.now,
	})

	server, err := b.httpFn(simhttp.ServerConfig{
		Addr:            cfg.App.HTTPAddr,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		Heartbeat:       time.Duration(cfg.HTTP.StreamHeartbeatSeconds) * time.Second,
		ShutdownTimeout: time.Duration(cfg.HTTP.ShutdownTimeoutSeconds) * time.Second,
		FillsLimit:      cfg.HTTP.DefaultFillsLimit,
		RequestLogging:  !cfg.HTTP.DisableRequestLogging,
		Engine:          app.engine,
		Candles:         guarded,
		Searcher:        searcher,
		Fills:           fills,
		Indicators:      indicatorSettings(cfg.Indicators),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}
	app.http = server

	app.Summary = &StartupSummary{
		Env:             cfg.App.Env,
		HTTPAddr:        cfg.App.HTTPAddr,
		Origins:         cfg.HTTP.AllowedOrigins,
		Source:          upstreamName,
		Timeframes:      cfg.Market.Timeframes,
		TickInterval:    cfg.Replay.TickInterval(),
		StartingBalance: cfg.Replay.StartingBalance,
		Cache:           cacheState,
		Journal:         journalState,
		Symbols:         searchDesc,
		ConfigFiles:     cfg.Files,
	}
	ok = true
	return app, nil
}

// buildMarketSource 按 kind 构造当前启用的行情源。
func buildMarketSource(_ context.Context, cfg *brcfg.Config) (market.Source, error) {
	active := cfg.Market.ResolveActiveSource()
	kind := strings.ToLower(strings.TrimSpace(active.Kind))
	switch kind {
	case "", "mock":
		var opts []mock.Option
		if active.Seed != 0 {
			opts = append(opts, mock.WithSeed(active.Seed))
		}
		return mock.New(opts...), nil
	case "polygon":
		return polygon.New(polygon.Config{
			RESTBaseURL:     active.RESTBaseURL,
			APIKey:          active.APIKey,
			HTTPTimeout:     cfg.Market.FetchTimeout(),
			ProxyEnabled:    active.Proxy.Enabled,
			RESTProxyURL:    active.Proxy.RESTURL,
			Timeframes:      cfg.Market.Timeframes,
			Limit:           cfg.Market.Limit,
			RateLimitPerMin: active.RateLimitPerMin,
			MinLookback:     active.MinLookback(),
		})
	case "binance":
		return binance.New(binance.Config{
			RESTBaseURL:     active.RESTBaseURL,
			HTTPTimeout:     cfg.Market.FetchTimeout(),
			ProxyEnabled:    active.Proxy.Enabled,
			RESTProxyURL:    active.Proxy.RESTURL,
			Timeframes:      cfg.Market.Timeframes,
			Limit:           cfg.Market.Limit,
			ExchangeInfoTTL: active.ExchangeInfoTTL(),
		})
	default:
		return nil, fmt.Errorf("unsupported market source kind: %s", active.Kind)
	}
}

// buildSearcher 返回代码搜索实现及其描述（用于启动摘要）。
func buildSearcher(cfg *brcfg.Config, src market.Source) (market.SymbolSearcher, string, error) {
	if strings.EqualFold(cfg.Symbols.Source, "market") {
		return src, "market:" + src.Name(), nil
	}
	path := strings.TrimSpace(cfg.Symbols.CatalogPath)
	if path == "" {
		return symbols.NewDefault(), "catalog:builtin", nil
	}
	catalog, err := symbols.NewFileCatalog(path, cfg.Symbols.Watch)
	if err != nil {
		return nil, "", fmt.Errorf("加载代码目录失败: %w", err)
	}
	desc := fmt.Sprintf("catalog:%s (%d)", path, catalog.Snapshot().Count)
	if cfg.Symbols.Watch {
		desc += " watch"
	}
	return catalog, desc, nil
}

func openJournal(cfg brcfg.JournalConfig) (*journal.Journal, error) {
	j, err := journal.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("打开审计库失败: %w", err)
	}
	return j, nil
}

func indicatorSettings(cfg brcfg.IndicatorsConfig) indicator.Settings {
	return indicator.Settings{
		EMAFast:       cfg.EMAFast,
		EMASlow:       cfg.EMASlow,
		RSIPeriod:     cfg.RSIPeriod,
		RSIOversold:   cfg.RSIOversold,
		RSIOverbought: cfg.RSIOverbought,
		ATRPeriod:     cfg.ATRPeriod,
	}
}
