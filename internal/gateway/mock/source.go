package mock

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"papersim/internal/market"
	"papersim/internal/symbols"
)

const (
	defaultBars     = 120
	defaultInterval = time.Minute
)

// Source 生成随机 K 线，用于本地开发与演示；代码搜索走内置目录。
type Source struct {
	bars     int
	interval time.Duration
	catalog  *symbols.Static
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Source)

// WithSeed 固定随机种子，便于复现。seed 为 0 时使用当前时间。
func WithSeed(seed int64) Option {
	return func(s *Source) {
		if seed != 0 {
			s.rng = rand.New(rand.NewSource(seed))
		}
	}
}

func WithBars(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.bars = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Source {
	s := &Source{
		bars:     defaultBars,
		interval: defaultInterval,
		catalog:  symbols.NewDefault(),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string { return "mock" }

// FetchCandles 返回截止当前时间的 bars 根一分钟 K 线，价格在 14~17 之间随机。
func (s *Source) FetchCandles(ctx context.Context, symbol string) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrSourceUnavailable, err)
	}
	if market.NormalizeSymbol(symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", market.ErrEmptyCandleSet)
	}
	now := s.now().UnixMilli()
	step := s.interval.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.Candle, s.bars)
	for i := range out {
		out[i] = market.Candle{
			Time:   now - int64(s.bars-i)*step,
			Open:   15 + s.rng.Float64(),
			High:   16 + s.rng.Float64(),
			Low:    14 + s.rng.Float64(),
			Close:  15 + s.rng.Float64(),
			Volume: math.Floor(s.rng.Float64() * 1000),
		}
	}
	return out, nil
}

func (s *Source) SearchSymbols(ctx context.Context, query string) ([]market.SymbolMatch, error) {
	return s.catalog.SearchSymbols(ctx, query)
}
