package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe 描述一个 K 线周期以及它在各数据源中的写法。
type Timeframe struct {
	Key               string
	Duration          time.Duration
	BinanceInterval   string
	PolygonMultiplier int
	PolygonSpan       string
}

var supportedTimeframes = map[string]Timeframe{
	"1m":  {Key: "1m", Duration: time.Minute, BinanceInterval: "1m", PolygonMultiplier: 1, PolygonSpan: "minute"},
	"5m":  {Key: "5m", Duration: 5 * time.Minute, BinanceInterval: "5m", PolygonMultiplier: 5, PolygonSpan: "minute"},
	"15m": {Key: "15m", Duration: 15 * time.Minute, BinanceInterval: "15m", PolygonMultiplier: 15, PolygonSpan: "minute"},
	"30m": {Key: "30m", Duration: 30 * time.Minute, BinanceInterval: "30m", PolygonMultiplier: 30, PolygonSpan: "minute"},
	"1h":  {Key: "1h", Duration: time.Hour, BinanceInterval: "1h", PolygonMultiplier: 1, PolygonSpan: "hour"},
	"4h":  {Key: "4h", Duration: 4 * time.Hour, BinanceInterval: "4h", PolygonMultiplier: 4, PolygonSpan: "hour"},
	"1d":  {Key: "1d", Duration: 24 * time.Hour, BinanceInterval: "1d", PolygonMultiplier: 1, PolygonSpan: "day"},
}

// ParseTimeframe 返回标准化周期定义。
func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	tf, ok := supportedTimeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("unsupported timeframe: %s", input)
	}
	return tf, nil
}

// ParseTimeframes 按给定顺序解析回退链。
func ParseTimeframes(keys []string) ([]Timeframe, error) {
	out := make([]Timeframe, 0, len(keys))
	for _, k := range keys {
		tf, err := ParseTimeframe(k)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("timeframe chain is empty")
	}
	return out, nil
}

// Lookback 返回取 limit 根 K 线需要回看的时间窗口。
func (tf Timeframe) Lookback(limit int) time.Duration {
	if limit <= 0 {
		limit = 1
	}
	return tf.Duration * time.Duration(limit)
}
