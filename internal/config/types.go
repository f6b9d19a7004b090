package config

import (
	"strings"
	"time"
)

// Config 是 papersim 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	HTTP       HTTPConfig       `toml:"http"`
	Replay     ReplayConfig     `toml:"replay"`
	Market     MarketConfig     `toml:"market"`
	Cache      CacheConfig      `toml:"cache"`
	Journal    JournalConfig    `toml:"journal"`
	Symbols    SymbolsConfig    `toml:"symbols"`
	Indicators IndicatorsConfig `toml:"indicators"`

	// Files 记录实际合并过的配置文件（含 include），仅用于日志。
	Files []string `toml:"-"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	// LogFormat 为 text 或 json。
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
}

type HTTPConfig struct {
	AllowedOrigins         []string `toml:"allowed_origins"`
	StreamHeartbeatSeconds int      `toml:"stream_heartbeat_seconds"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
	DefaultFillsLimit      int      `toml:"default_fills_limit"`
	DisableRequestLogging  bool     `toml:"disable_request_logging"`
}

// ReplayConfig 控制回放时钟节奏与账户初始资金。
type ReplayConfig struct {
	TickIntervalMs  int     `toml:"tick_interval_ms"`
	StartingBalance float64 `toml:"starting_balance"`
}

func (r ReplayConfig) TickInterval() time.Duration {
	return time.Duration(r.TickIntervalMs) * time.Millisecond
}

type MarketConfig struct {
	ActiveSource        string         `toml:"active_source"`
	Sources             []MarketSource `toml:"sources"`
	Timeframes          []string       `toml:"timeframes"`
	Limit               int            `toml:"limit"`
	FetchTimeoutSeconds int            `toml:"fetch_timeout_seconds"`
	Breaker             BreakerConfig  `toml:"breaker"`
}

type MarketSource struct {
	Name            string      `toml:"name"`
	Kind            string      `toml:"kind"`
	Enabled         bool        `toml:"enabled"`
	RESTBaseURL     string      `toml:"rest_base_url"`
	APIKey          string      `toml:"api_key"`
	RateLimitPerMin int         `toml:"rate_limit_per_min"`
	Seed            int64       `toml:"seed"`
	Proxy           ProxyConfig `toml:"proxy"`
	// binance 代码搜索缓存 exchangeInfo 的秒数
	ExchangeInfoTTLSeconds int `toml:"exchange_info_ttl_seconds"`
	// polygon 聚合请求回看窗口下限（小时）
	MinLookbackHours int `toml:"min_lookback_hours"`
}

func (s MarketSource) ExchangeInfoTTL() time.Duration {
	return time.Duration(s.ExchangeInfoTTLSeconds) * time.Second
}

func (s MarketSource) MinLookback() time.Duration {
	return time.Duration(s.MinLookbackHours) * time.Hour
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

// BreakerConfig 连续失败 Threshold 次后熔断 CooldownSeconds 秒。
type BreakerConfig struct {
	Threshold       int `toml:"threshold"`
	CooldownSeconds int `toml:"cooldown_seconds"`
}

func (m MarketConfig) FetchTimeout() time.Duration {
	return time.Duration(m.FetchTimeoutSeconds) * time.Second
}

// ResolveActiveSource 返回 active_source 指向的已启用数据源；找不到时退回第一个。
func (m MarketConfig) ResolveActiveSource() MarketSource {
	if len(m.Sources) == 0 {
		return MarketSource{
			Name:    defaultMarketName,
			Kind:    defaultMarketName,
			Enabled: true,
		}
	}
	active := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	var fallback MarketSource
	for _, src := range m.Sources {
		if fallback.Name == "" {
			fallback = src
		}
		if !src.Enabled {
			continue
		}
		if active == "" || strings.ToLower(src.Name) == active {
			return src
		}
	}
	return fallback
}

// CacheConfig 控制 K 线本地缓存。
type CacheConfig struct {
	Enabled    bool   `toml:"enabled"`
	Path       string `toml:"path"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// JournalConfig 控制成交审计日志。
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type SymbolsConfig struct {
	// Source 为 catalog 或 market。
	Source      string `toml:"source"`
	CatalogPath string `toml:"catalog_path"`
	Watch       bool   `toml:"watch"`
}

type IndicatorsConfig struct {
	EMAFast       int     `toml:"ema_fast"`
	EMASlow       int     `toml:"ema_slow"`
	RSIPeriod     int     `toml:"rsi_period"`
	RSIOversold   float64 `toml:"rsi_oversold"`
	RSIOverbought float64 `toml:"rsi_overbought"`
	ATRPeriod     int     `toml:"atr_period"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
