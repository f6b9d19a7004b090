package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration

	ProxyEnabled bool
	RESTProxyURL string

	// Timeframes 为回退链（如 1m,5m,15m），Limit 为单次拉取根数。
	Timeframes []string
	Limit      int
	// ExchangeInfoTTL 控制代码搜索所用交易对列表的缓存时长。
	ExchangeInfoTTL time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	if len(out.Timeframes) == 0 {
		out.Timeframes = []string{"1m", "5m", "15m", "1h", "1d"}
	}
	if out.Limit <= 0 {
		out.Limit = 500
	}
	if out.Limit > maxHistoryLimit {
		out.Limit = maxHistoryLimit
	}
	if out.ExchangeInfoTTL <= 0 {
		out.ExchangeInfoTTL = time.Hour
	}
	return out
}
