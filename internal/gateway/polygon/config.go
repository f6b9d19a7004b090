package polygon

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	APIKey      string
	HTTPTimeout time.Duration

	ProxyEnabled bool
	RESTProxyURL string

	Timeframes []string
	Limit      int
	// RateLimitPerMin 限制每分钟请求数（免费档为 5）。
	RateLimitPerMin int
	// MinLookback 是每次聚合请求回看窗口的下限，用于跨越周末与休市。
	MinLookback time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://api.polygon.io"
	}
	out.APIKey = strings.TrimSpace(out.APIKey)
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
	if out.RateLimitPerMin <= 0 {
		out.RateLimitPerMin = 5
	}
	if out.MinLookback <= 0 {
		out.MinLookback = 7 * 24 * time.Hour
	}
	return out
}
