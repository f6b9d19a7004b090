package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":10000"
	defaultAllowedOrigin     = "https://stellar-gecko-96c6ca.netlify.app"
	defaultHeartbeatSeconds  = 15
	defaultShutdownSeconds   = 5
	defaultFillsLimit        = 50
	defaultTickIntervalMs    = 1000
	defaultStartingBalance   = 100000
	defaultMarketName        = "mock"
	defaultPolygonREST       = "https://api.polygon.io"
	defaultBinanceREST       = "https://fapi.binance.com"
	defaultPolygonRatePerMin = 5
	defaultPolygonLookbackH  = 7 * 24
	defaultBinanceInfoTTL    = 3600
	defaultMarketLimit       = 500
	defaultFetchTimeout      = 15
	defaultBreakerThreshold  = 3
	defaultBreakerCooldown   = 30
	defaultCachePath         = "data/candles.db"
	defaultCacheTTLSeconds   = 300
	defaultJournalPath       = "data/journal.db"
	defaultSymbolsSource     = "catalog"
)

var defaultTimeframes = []string{"1m", "5m", "15m", "1h", "1d"}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	c.Replay.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Cache.applyDefaults(keys)
	c.Journal.applyDefaults(keys)
	c.Symbols.applyDefaults(keys)
	c.Indicators.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "http.allowed_origins",
			need:  func() bool { return len(h.AllowedOrigins) == 0 },
			apply: func() { h.AllowedOrigins = []string{defaultAllowedOrigin} },
		},
		intFieldDefault("http.stream_heartbeat_seconds", &h.StreamHeartbeatSeconds, defaultHeartbeatSeconds),
		intFieldDefault("http.shutdown_timeout_seconds", &h.ShutdownTimeoutSeconds, defaultShutdownSeconds),
		intFieldDefault("http.default_fills_limit", &h.DefaultFillsLimit, defaultFillsLimit),
	)
	h.AllowedOrigins = normalizeList(h.AllowedOrigins)
}

func (r *ReplayConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("replay.tick_interval_ms", &r.TickIntervalMs, defaultTickIntervalMs),
		fieldDefault{
			key:   "replay.starting_balance",
			need:  func() bool { return r.StartingBalance <= 0 },
			apply: func() { r.StartingBalance = defaultStartingBalance },
		},
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if len(m.Sources) == 0 {
		m.Sources = []MarketSource{{
			Name:    defaultMarketName,
			Kind:    defaultMarketName,
			Enabled: true,
		}}
	}
	for i := range m.Sources {
		src := &m.Sources[i]
		src.Proxy.normalize()
		if strings.TrimSpace(src.Name) == "" {
			if i == 0 {
				src.Name = defaultMarketName
			} else {
				src.Name = fmt.Sprintf("market_%d", i)
			}
		}
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		if src.Kind == "" {
			src.Kind = strings.ToLower(strings.TrimSpace(src.Name))
		}
		switch src.Kind {
		case "polygon":
			if src.RESTBaseURL == "" {
				src.RESTBaseURL = defaultPolygonREST
			}
			if src.RateLimitPerMin <= 0 {
				src.RateLimitPerMin = defaultPolygonRatePerMin
			}
			if src.MinLookbackHours == 0 {
				src.MinLookbackHours = defaultPolygonLookbackH
			}
		case "binance":
			if src.RESTBaseURL == "" {
				src.RESTBaseURL = defaultBinanceREST
			}
			if src.ExchangeInfoTTLSeconds == 0 {
				src.ExchangeInfoTTLSeconds = defaultBinanceInfoTTL
			}
		}
	}
	if strings.TrimSpace(m.ActiveSource) == "" {
		m.ActiveSource = firstEnabledMarket(m.Sources)
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "market.timeframes",
			need:  func() bool { return len(m.Timeframes) == 0 },
			apply: func() { m.Timeframes = append([]string(nil), defaultTimeframes...) },
		},
		intFieldDefault("market.limit", &m.Limit, defaultMarketLimit),
		intFieldDefault("market.fetch_timeout_seconds", &m.FetchTimeoutSeconds, defaultFetchTimeout),
		intFieldDefault("market.breaker.threshold", &m.Breaker.Threshold, defaultBreakerThreshold),
		intFieldDefault("market.breaker.cooldown_seconds", &m.Breaker.CooldownSeconds, defaultBreakerCooldown),
	)
	m.Timeframes = normalizeList(m.Timeframes)
}

func (c *CacheConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("cache.path", &c.Path, defaultCachePath),
		intFieldDefault("cache.ttl_seconds", &c.TTLSeconds, defaultCacheTTLSeconds),
	)
}

func (j *JournalConfig) applyDefaults(keys keySet) {
	if j == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("journal.path", &j.Path, defaultJournalPath),
	)
}

func (s *SymbolsConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("symbols.source", &s.Source, defaultSymbolsSource),
	)
	s.Source = strings.ToLower(strings.TrimSpace(s.Source))
	s.CatalogPath = strings.TrimSpace(s.CatalogPath)
}

func (i *IndicatorsConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("indicators.ema_fast", &i.EMAFast, 9),
		intFieldDefault("indicators.ema_slow", &i.EMASlow, 21),
		intFieldDefault("indicators.rsi_period", &i.RSIPeriod, 14),
		intFieldDefault("indicators.atr_period", &i.ATRPeriod, 14),
		fieldDefault{
			key:   "indicators.rsi_oversold",
			need:  func() bool { return i.RSIOversold <= 0 },
			apply: func() { i.RSIOversold = 30 },
		},
		fieldDefault{
			key:   "indicators.rsi_overbought",
			need:  func() bool { return i.RSIOverbought <= 0 },
			apply: func() { i.RSIOverbought = 70 },
		},
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func firstEnabledMarket(sources []MarketSource) string {
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if src.Enabled && name != "" {
			return name
		}
	}
	if len(sources) > 0 {
		if name := strings.TrimSpace(sources[0].Name); name != "" {
			return name
		}
	}
	return defaultMarketName
}

func normalizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
