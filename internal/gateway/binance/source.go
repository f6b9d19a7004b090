package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"papersim/internal/logger"
	"papersim/internal/market"
	pair "papersim/internal/pkg/symbol"
)

const (
	maxHistoryLimit    = 1500
	maxSearchResults   = 20
	codeInvalidSymbol  = -1121
	unclosedKlineGrace = 2 * time.Second
)

// Source 基于 go-binance U 本位合约 REST 接口实现 market.Source。
type Source struct {
	cfg    Config
	chain  []market.Timeframe
	client *futures.Client
	now    func() time.Time

	infoMu      sync.Mutex
	infoSymbols []market.SymbolMatch
	infoAt      time.Time
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	chain, err := market.ParseTimeframes(final.Timeframes)
	if err != nil {
		return nil, err
	}
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{
		cfg:    final,
		chain:  chain,
		client: client,
		now:    time.Now,
	}, nil
}

func (s *Source) Name() string { return "binance" }

// Settings 返回补全默认值后的配置。
func (s *Source) Settings() Config { return s.cfg }

// FetchCandles 按回退链依次请求 K 线，返回第一个非空周期的已收盘 K 线。
func (s *Source) FetchCandles(ctx context.Context, symbol string) ([]market.Candle, error) {
	clean := toExchange(symbol)
	if clean == "" {
		return nil, fmt.Errorf("%w: symbol is required", market.ErrEmptyCandleSet)
	}
	candles, tf, err := market.FetchWithFallback(ctx, clean, s.chain, func(ctx context.Context, tf market.Timeframe) ([]market.Candle, error) {
		return s.fetchInterval(ctx, clean, tf)
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("binance %s 使用 %s 周期，共 %d 根", clean, tf.Key, len(candles))
	return candles, nil
}

func (s *Source) fetchInterval(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Candle, error) {
	kls, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(tf.BinanceInterval).
		Limit(s.cfg.Limit).
		Do(ctx)
	if err != nil {
		return nil, classify(symbol, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for i, kl := range kls {
		if kl == nil {
			continue
		}
		c, err := toCandle(kl)
		if err != nil {
			return nil, fmt.Errorf("%w: binance klines %s #%d: %v", market.ErrSourceUnavailable, symbol, i, err)
		}
		out = append(out, c)
	}
	return dropUnclosed(out, tf.Duration, s.now()), nil
}

// SearchSymbols 在缓存的交易对列表中按前缀匹配。
func (s *Source) SearchSymbols(ctx context.Context, query string) ([]market.SymbolMatch, error) {
	q := toExchange(query)
	if q == "" {
		return []market.SymbolMatch{}, nil
	}
	all, err := s.exchangeSymbols(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.SymbolMatch, 0, maxSearchResults)
	for _, m := range all {
		if strings.HasPrefix(m.Symbol, q) {
			out = append(out, m)
			if len(out) == maxSearchResults {
				break
			}
		}
	}
	return out, nil
}

func (s *Source) exchangeSymbols(ctx context.Context) ([]market.SymbolMatch, error) {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	if len(s.infoSymbols) > 0 && s.now().Sub(s.infoAt) < s.cfg.ExchangeInfoTTL {
		return s.infoSymbols, nil
	}
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		if len(s.infoSymbols) > 0 {
			logger.Warnf("binance exchangeInfo 刷新失败，沿用旧列表: %v", err)
			return s.infoSymbols, nil
		}
		return nil, fmt.Errorf("%w: exchange info: %v", market.ErrSourceUnavailable, err)
	}
	list := make([]market.SymbolMatch, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		if sym.Status != "" && sym.Status != "TRADING" {
			continue
		}
		list = append(list, market.SymbolMatch{
			Symbol: sym.Symbol,
			Name:   pair.Pair{Base: sym.BaseAsset, Quote: sym.QuoteAsset}.Display(),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Symbol < list[j].Symbol })
	s.infoSymbols = list
	s.infoAt = s.now()
	return list, nil
}

// classify 把 SDK 错误映射到行情源错误；无效交易对视为空结果。
func classify(symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
		return fmt.Errorf("%w: %s: %s", market.ErrEmptyCandleSet, symbol, apiErr.Message)
	}
	return fmt.Errorf("%w: binance klines %s: %v", market.ErrSourceUnavailable, symbol, err)
}

// dropUnclosed 去掉仍在进行中的最后一根 K 线。
func dropUnclosed(klines []market.Candle, interval time.Duration, now time.Time) []market.Candle {
	if len(klines) == 0 || interval <= 0 {
		return klines
	}
	last := klines[len(klines)-1]
	closeAt := time.UnixMilli(last.Time).Add(interval).Add(unclosedKlineGrace)
	if now.Before(closeAt) {
		return klines[:len(klines)-1]
	}
	return klines
}

// toExchange 把 BTC/USDT 这类写法转换成 BTCUSDT。
func toExchange(symbol string) string {
	return pair.Compact(symbol)
}

// toCandle 解析 K 线字段；任一字段无法解析或价格无效时报错。
func toCandle(kl *futures.Kline) (market.Candle, error) {
	c := market.Candle{Time: kl.OpenTime}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", kl.Open, &c.Open},
		{"high", kl.High, &c.High},
		{"low", kl.Low, &c.Low},
		{"close", kl.Close, &c.Close},
		{"volume", kl.Volume, &c.Volume},
	}
	for _, f := range fields {
		v, err := parseFloat(f.raw)
		if err != nil {
			return market.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	if err := c.Validate(); err != nil {
		return market.Candle{}, err
	}
	return c, nil
}

func parseFloat(v string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(v), 64)
}
