package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.HTTP.validate(); err != nil {
		return err
	}
	if err := c.Replay.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Journal.validate(); err != nil {
		return err
	}
	if err := c.Symbols.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json, got %q", a.LogFormat)
	}
	return nil
}

func (h *HTTPConfig) validate() error {
	if h.StreamHeartbeatSeconds <= 0 {
		return fmt.Errorf("http.stream_heartbeat_seconds must be > 0")
	}
	for _, origin := range h.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("http.allowed_origins contains invalid origin: %s", origin)
		}
	}
	return nil
}

func (r *ReplayConfig) validate() error {
	if r.TickIntervalMs <= 0 {
		return fmt.Errorf("replay.tick_interval_ms must be > 0")
	}
	if r.StartingBalance <= 0 {
		return fmt.Errorf("replay.starting_balance must be > 0")
	}
	return nil
}

var knownSourceKinds = map[string]bool{
	"mock":    true,
	"polygon": true,
	"binance": true,
}

func (m *MarketConfig) validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("market.sources requires at least one source")
	}
	activeName := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	enabled := 0
	activeFound := false
	for _, src := range m.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if !knownSourceKinds[src.Kind] {
			return fmt.Errorf("market source %s has unsupported kind %q", src.Name, src.Kind)
		}
		if src.Kind != "mock" && strings.TrimSpace(src.RESTBaseURL) == "" {
			return fmt.Errorf("market source %s missing rest_base_url", src.Name)
		}
		if src.Kind == "polygon" && strings.TrimSpace(src.APIKey) == "" {
			return fmt.Errorf("market source %s requires api_key", src.Name)
		}
		if src.ExchangeInfoTTLSeconds < 0 || src.MinLookbackHours < 0 {
			return fmt.Errorf("market source %s has negative exchange_info_ttl_seconds or min_lookback_hours", src.Name)
		}
		if src.Proxy.Enabled && src.Proxy.RESTURL == "" {
			return fmt.Errorf("market source %s has proxy enabled but no rest_url", src.Name)
		}
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if activeName == "" || name == activeName {
			activeFound = true
		}
	}
	if enabled == 0 {
		return fmt.Errorf("market.sources requires at least one enabled source")
	}
	if !activeFound {
		return fmt.Errorf("enabled market.active_source=%s not found", m.ActiveSource)
	}
	if len(m.Timeframes) == 0 {
		return fmt.Errorf("market.timeframes requires at least one timeframe")
	}
	if m.Limit <= 0 {
		return fmt.Errorf("market.limit must be > 0")
	}
	if m.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("market.fetch_timeout_seconds must be > 0")
	}
	if m.Breaker.Threshold < 0 || m.Breaker.CooldownSeconds < 0 {
		return fmt.Errorf("market.breaker values must be >= 0")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("cache.path is required when cache is enabled")
	}
	if c.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	return nil
}

func (j *JournalConfig) validate() error {
	if j.Enabled && strings.TrimSpace(j.Path) == "" {
		return fmt.Errorf("journal.path is required when journal is enabled")
	}
	return nil
}

func (s *SymbolsConfig) validate() error {
	switch s.Source {
	case "catalog", "market":
	default:
		return fmt.Errorf("symbols.source must be catalog or market, got %q", s.Source)
	}
	if s.Watch && s.CatalogPath == "" {
		return fmt.Errorf("symbols.watch requires symbols.catalog_path")
	}
	return nil
}
