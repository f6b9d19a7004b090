package polygon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"papersim/internal/logger"
	"papersim/internal/market"
	"papersim/internal/pkg/text"
)

const (
	maxSearchResults = 20
	maxBodyBytes     = 8 << 20
)

// Source 通过 Polygon 风格的 REST 聚合接口获取美股 K 线。
type Source struct {
	cfg     Config
	chain   []market.Timeframe
	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	chain, err := market.ParseTimeframes(final.Timeframes)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	perSec := rate.Limit(float64(final.RateLimitPerMin) / 60.0)
	return &Source{
		cfg:     final,
		chain:   chain,
		http:    httpClient,
		limiter: rate.NewLimiter(perSec, 1),
		now:     time.Now,
	}, nil
}

func (s *Source) Name() string { return "polygon" }

// Settings 返回补全默认值后的配置。
func (s *Source) Settings() Config { return s.cfg }

// FetchCandles 依次尝试回退链中的周期，返回第一个有数据的周期的最后 Limit 根 K 线。
func (s *Source) FetchCandles(ctx context.Context, symbol string) ([]market.Candle, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", market.ErrEmptyCandleSet)
	}
	candles, tf, err := market.FetchWithFallback(ctx, symbol, s.chain, func(ctx context.Context, tf market.Timeframe) ([]market.Candle, error) {
		return s.fetchAggregates(ctx, symbol, tf)
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("polygon %s 使用 %s 周期，共 %d 根", symbol, tf.Key, len(candles))
	return candles, nil
}

func (s *Source) fetchAggregates(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Candle, error) {
	to := s.now().UTC()
	lookback := tf.Lookback(s.cfg.Limit)
	if lookback < s.cfg.MinLookback {
		lookback = s.cfg.MinLookback
	}
	from := to.Add(-lookback)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/%s/%s",
		url.PathEscape(symbol), tf.PolygonMultiplier, tf.PolygonSpan,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	q := url.Values{}
	q.Set("adjusted", "true")
	q.Set("sort", "asc")
	q.Set("limit", "50000")
	body, err := s.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	results := gjson.GetBytes(body, "results")
	if !results.Exists() {
		return nil, nil
	}
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: polygon aggs %s: results is not an array", market.ErrSourceUnavailable, symbol)
	}
	out := make([]market.Candle, 0, int(results.Get("#").Int()))
	var parseErr error
	results.ForEach(func(_, bar gjson.Result) bool {
		c, err := parseAggregate(bar)
		if err != nil {
			parseErr = fmt.Errorf("%w: polygon aggs %s bar %d: %v", market.ErrSourceUnavailable, symbol, len(out), err)
			return false
		}
		out = append(out, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return market.TailCandles(out, s.cfg.Limit), nil
}

var aggregateFields = [...]string{"t", "o", "h", "l", "c", "v"}

// parseAggregate 要求 t/o/h/l/c/v 全部为数值，价格须为正。
func parseAggregate(bar gjson.Result) (market.Candle, error) {
	for _, k := range aggregateFields {
		if v := bar.Get(k); v.Type != gjson.Number {
			return market.Candle{}, fmt.Errorf("field %q is %s, want number", k, v.Type)
		}
	}
	c := market.Candle{
		Time:   bar.Get("t").Int(),
		Open:   bar.Get("o").Float(),
		High:   bar.Get("h").Float(),
		Low:    bar.Get("l").Float(),
		Close:  bar.Get("c").Float(),
		Volume: bar.Get("v").Float(),
	}
	if err := c.Validate(); err != nil {
		return market.Candle{}, err
	}
	return c, nil
}

// SearchSymbols 调用 reference tickers 接口进行搜索。
func (s *Source) SearchSymbols(ctx context.Context, query string) ([]market.SymbolMatch, error) {
	query = market.NormalizeSymbol(query)
	if query == "" {
		return []market.SymbolMatch{}, nil
	}
	q := url.Values{}
	q.Set("search", query)
	q.Set("active", "true")
	q.Set("limit", strconv.Itoa(maxSearchResults))
	body, err := s.get(ctx, "/v3/reference/tickers", q)
	if err != nil {
		return nil, err
	}
	out := make([]market.SymbolMatch, 0, maxSearchResults)
	gjson.GetBytes(body, "results").ForEach(func(_, item gjson.Result) bool {
		ticker := item.Get("ticker").String()
		if ticker == "" {
			return true
		}
		out = append(out, market.SymbolMatch{Symbol: ticker, Name: item.Get("name").String()})
		return true
	})
	return out, nil
}

func (s *Source) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", market.ErrSourceUnavailable, err)
	}
	q.Set("apiKey", s.cfg.APIKey)
	endpoint := s.cfg.RESTBaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrSourceUnavailable, err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", market.ErrSourceUnavailable, path, redact(err.Error(), s.cfg.APIKey))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", market.ErrSourceUnavailable, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = gjson.GetBytes(body, "message").String()
		}
		if msg == "" {
			msg = text.Truncate(strings.TrimSpace(string(body)), 200)
		}
		return nil, fmt.Errorf("%w: %s status=%d %s", market.ErrSourceUnavailable, path, resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s returned invalid json", market.ErrSourceUnavailable, path)
	}
	return body, nil
}

func redact(msg, secret string) string {
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, secret, "***")
}
