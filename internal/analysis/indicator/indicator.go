package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"papersim/internal/market"
)

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	macdMinLen = macdSlow + macdSignal
)

// Settings 描述计算指标所需的参数；零值字段使用默认值。
type Settings struct {
	EMAFast       int     `json:"ema_fast,omitempty"`
	EMASlow       int     `json:"ema_slow,omitempty"`
	RSIPeriod     int     `json:"rsi_period,omitempty"`
	RSIOversold   float64 `json:"rsi_oversold,omitempty"`
	RSIOverbought float64 `json:"rsi_overbought,omitempty"`
	ATRPeriod     int     `json:"atr_period,omitempty"`
}

func (s Settings) withDefaults() Settings {
	if s.EMAFast <= 0 {
		s.EMAFast = 9
	}
	if s.EMASlow <= 0 {
		s.EMASlow = 21
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	if s.RSIOversold == 0 {
		s.RSIOversold = 30
	}
	if s.RSIOverbought == 0 {
		s.RSIOverbought = 70
	}
	if s.ATRPeriod <= 0 {
		s.ATRPeriod = 14
	}
	return s
}

// IndicatorValue 保存单个指标的最新值、序列与状态。
type IndicatorValue struct {
	Latest float64   `json:"latest"`
	Series []float64 `json:"series,omitempty"`
	State  string    `json:"state,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Report 汇总一段 K 线的指标输出。
type Report struct {
	Symbol   string                    `json:"symbol"`
	Count    int                       `json:"count"`
	Values   map[string]IndicatorValue `json:"values"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// ComputeAll 计算常用指标。K 线数量不足的指标被跳过并记入 Warnings。
func ComputeAll(symbol string, candles []market.Candle, cfg Settings) (Report, error) {
	cfg = cfg.withDefaults()
	rep := Report{
		Symbol: symbol,
		Count:  len(candles),
		Values: make(map[string]IndicatorValue),
	}
	if len(candles) == 0 {
		return rep, fmt.Errorf("no candles")
	}
	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}
	lastClose := closes[n-1]
	skip := func(name string, need int) {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s needs %d candles, have %d", name, need, n))
	}

	// EMA
	for _, ema := range []struct {
		key    string
		period int
	}{{"ema_fast", cfg.EMAFast}, {"ema_slow", cfg.EMASlow}} {
		if n < ema.period {
			skip(ema.key, ema.period)
			continue
		}
		series := trimEMALeadingZeros(sanitizeSeries(talib.Ema(closes, ema.period)))
		rep.Values[ema.key] = IndicatorValue{
			Latest: lastValid(series),
			Series: series,
			State:  relativeState(lastClose, lastValid(series)),
			Note:   fmt.Sprintf("EMA%d vs price", ema.period),
		}
	}

	// RSI
	if n > cfg.RSIPeriod {
		rsiSeries := sanitizeSeries(talib.Rsi(closes, cfg.RSIPeriod))
		rsiVal := lastValid(rsiSeries)
		state := "neutral"
		switch {
		case rsiVal >= cfg.RSIOverbought:
			state = "overbought"
		case rsiVal <= cfg.RSIOversold:
			state = "oversold"
		}
		rep.Values["rsi"] = IndicatorValue{
			Latest: rsiVal,
			Series: rsiSeries,
			State:  state,
			Note:   fmt.Sprintf("period=%d thresholds=%.1f/%.1f", cfg.RSIPeriod, cfg.RSIOversold, cfg.RSIOverbought),
		}
	} else {
		skip("rsi", cfg.RSIPeriod+1)
	}

	// MACD
	if n >= macdMinLen {
		macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		signalSeries := sanitizeSeries(signal)
		histSeries := sanitizeSeries(hist)
		macdState := "flat"
		switch {
		case lastValid(histSeries) > 0:
			macdState = "bullish"
		case lastValid(histSeries) < 0:
			macdState = "bearish"
		}
		rep.Values["macd"] = IndicatorValue{
			Latest: lastValid(sanitizeSeries(macd)),
			Series: histSeries,
			State:  macdState,
			Note:   fmt.Sprintf("signal=%.4f hist=%.4f", lastValid(signalSeries), lastValid(histSeries)),
		}
	} else {
		skip("macd", macdMinLen)
	}

	// ATR
	if n > cfg.ATRPeriod {
		atrSeries := sanitizeSeries(talib.Atr(highs, lows, closes, cfg.ATRPeriod))
		rep.Values["atr"] = IndicatorValue{
			Latest: lastValid(atrSeries),
			Series: atrSeries,
			State:  "volatility",
			Note:   fmt.Sprintf("period=%d", cfg.ATRPeriod),
		}
	} else {
		skip("atr", cfg.ATRPeriod+1)
	}

	// OBV
	obv := sanitizeSeries(talib.Obv(closes, volumes))
	rep.Values["obv"] = IndicatorValue{
		Latest: lastValid(obv),
		Series: obv,
		State:  polarityState(obvSlope(obv)),
		Note:   "volume thrust",
	}

	return rep, nil
}

func obvSlope(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	return series[len(series)-1] - series[len(series)-2]
}

func sanitizeSeries(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, round4(v))
	}
	return out
}

// trimEMALeadingZeros drops TALib's zero-seeded EMA values so series start when enough candles exist.
func trimEMALeadingZeros(series []float64) []float64 {
	start := 0
	for start < len(series) && almostZero(series[start]) {
		start++
	}
	return series[start:]
}

func almostZero(v float64) bool {
	return math.Abs(v) <= 1e-9
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func polarityState(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "flat"
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
