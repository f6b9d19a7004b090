package candlecache

import (
	"context"
	"time"

	"papersim/internal/logger"
	"papersim/internal/market"
)

// Source 是带 TTL 的读穿透缓存，包装任意 market.Source。
type Source struct {
	market.Source
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

func NewSource(upstream market.Source, store *Store, ttl time.Duration) *Source {
	return &Source{Source: upstream, store: store, ttl: ttl, now: time.Now}
}

func (s *Source) FetchCandles(ctx context.Context, symbol string) ([]market.Candle, error) {
	symbol = market.NormalizeSymbol(symbol)
	name := s.Source.Name()
	cached, m, ok, err := s.store.Load(ctx, name, symbol)
	if err != nil {
		logger.Warnf("读取 K 线缓存失败 %s/%s: %v", name, symbol, err)
	} else if ok && len(cached) > 0 && s.now().Sub(m.FetchedAt) < s.ttl {
		logger.Debugf("K 线缓存命中 %s/%s rows=%d", name, symbol, len(cached))
		return cached, nil
	}

	candles, err := s.Source.FetchCandles(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, name, symbol, candles, s.now()); err != nil {
		logger.Warnf("写入 K 线缓存失败 %s/%s: %v", name, symbol, err)
	}
	return candles, nil
}
