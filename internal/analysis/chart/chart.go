package chart

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"papersim/internal/analysis/indicator"
	"papersim/internal/market"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorEmaFast       = "#3b82f6"
	colorEmaSlow       = "#fbbf24"

	chartWidth   = "1200px"
	klineHeight  = "520px"
	volumeHeight = "220px"
)

// Render 把已揭示的 K 线渲染为带 EMA 叠加与成交量的 HTML 页面。
func Render(w io.Writer, symbol string, candles []market.Candle, rep indicator.Report) error {
	if len(candles) == 0 {
		return fmt.Errorf("no candles to render for %s", symbol)
	}
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s replay", symbol)
	page.SetLayout(components.PageFlexLayout)

	xAxis := buildXAxis(candles)
	kline := buildKline(symbol, xAxis, candles, rep)
	volume := buildVolumeChart(xAxis, candles)
	page.AddCharts(kline, volume)
	return page.Render(w)
}

func buildKline(symbol string, xAxis []string, candles []market.Candle, rep indicator.Report) *charts.Kline {
	minPrice, maxPrice := priceBounds(candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(0.01, math.Abs(maxPrice)*0.01)
	}
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           chartWidth,
			Height:          klineHeight,
			BackgroundColor: colorBackground,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         symbol,
			Subtitle:      subtitle(rep),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	data := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", data)

	line := charts.NewLine()
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	if v, ok := rep.Values["ema_fast"]; ok {
		line.AddSeries("EMA Fast", toLineData(v.Series, len(candles)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaFast, Width: 2}))
	}
	if v, ok := rep.Values["ema_slow"]; ok {
		line.AddSeries("EMA Slow", toLineData(v.Series, len(candles)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaSlow, Width: 2}))
	}
	line.SetXAxis(xAxis)
	kline.Overlap(line)
	return kline
}

func buildVolumeChart(xAxis []string, candles []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           chartWidth,
			Height:          volumeHeight,
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{
			Value:     c.Volume,
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func subtitle(rep indicator.Report) string {
	rsi, hasRSI := rep.Values["rsi"]
	macd, hasMACD := rep.Values["macd"]
	switch {
	case hasRSI && hasMACD:
		return fmt.Sprintf("%d bars | RSI %.1f | MACD %s", rep.Count, rsi.Latest, macd.State)
	case hasRSI:
		return fmt.Sprintf("%d bars | RSI %.1f", rep.Count, rsi.Latest)
	default:
		return fmt.Sprintf("%d bars", rep.Count)
	}
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.Time).UTC().Format("01-02 15:04")
	}
	return x
}

// toLineData 右对齐 series，前部不足的位置留空。
func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		series = series[-offset:]
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i, val := range series {
		if math.IsNaN(val) {
			line[offset+i] = opts.LineData{Value: nil}
			continue
		}
		line[offset+i] = opts.LineData{Value: round(val, 4)}
	}
	return line
}

func round(val float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func priceBounds(candles []market.Candle) (minVal, maxVal float64) {
	minVal = candles[0].Low
	maxVal = candles[0].High
	for _, c := range candles {
		if c.Low < minVal {
			minVal = c.Low
		}
		if c.High > maxVal {
			maxVal = c.High
		}
	}
	return minVal, maxVal
}
