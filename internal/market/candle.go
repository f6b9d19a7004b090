package market

import (
	"fmt"
	"math"
)

// Candle 是一根 OHLCV K 线，T 为开盘时间的 Unix 毫秒时间戳。
// 序列化字段名与前端约定一致：t/o/h/l/c/v。
type Candle struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// ValidateSeries 检查序列严格按时间升序、无重复时间戳，且每根 K 线价格有效。
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candle %d (t=%d): %w", i, c.Time, err)
		}
		if i > 0 && c.Time <= candles[i-1].Time {
			return fmt.Errorf("candle %d out of order: t=%d after t=%d", i, c.Time, candles[i-1].Time)
		}
	}
	return nil
}

// Validate 要求 o/h/l/c 为有限正数，v 为有限非负数。
func (c Candle) Validate() error {
	prices := [...]struct {
		name string
		val  float64
	}{{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}}
	for _, p := range prices {
		if math.IsNaN(p.val) || math.IsInf(p.val, 0) || p.val <= 0 {
			return fmt.Errorf("invalid %s price %v", p.name, p.val)
		}
	}
	if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
		return fmt.Errorf("invalid volume %v", c.Volume)
	}
	return nil
}

// TailCandles 返回最后 limit 根 K 线；limit<=0 时原样返回。
func TailCandles(candles []Candle, limit int) []Candle {
	if limit <= 0 || len(candles) <= limit {
		return candles
	}
	return candles[len(candles)-limit:]
}
