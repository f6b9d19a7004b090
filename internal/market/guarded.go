package market

import (
	"context"
	"errors"
	"fmt"

	"papersim/internal/pkg/circuit"
)

// Guarded 用熔断器包装数据源：连续 ErrSourceUnavailable 后快速失败。
// 空结果与调用方取消不计为失败。
type Guarded struct {
	Source
	breaker *circuit.CircuitBreaker
}

func NewGuarded(src Source, breaker *circuit.CircuitBreaker) *Guarded {
	return &Guarded{Source: src, breaker: breaker}
}

func (g *Guarded) FetchCandles(ctx context.Context, symbol string) ([]Candle, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("%w: %s circuit open", ErrSourceUnavailable, g.Source.Name())
	}
	candles, err := g.Source.FetchCandles(ctx, symbol)
	g.record(ctx, err)
	return candles, err
}

func (g *Guarded) SearchSymbols(ctx context.Context, query string) ([]SymbolMatch, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("%w: %s circuit open", ErrSourceUnavailable, g.Source.Name())
	}
	matches, err := g.Source.SearchSymbols(ctx, query)
	g.record(ctx, err)
	return matches, err
}

func (g *Guarded) record(ctx context.Context, err error) {
	switch {
	case err == nil, errors.Is(err, ErrEmptyCandleSet):
		g.breaker.RecordSuccess()
	case ctx.Err() != nil:
	case errors.Is(err, ErrSourceUnavailable):
		g.breaker.RecordFailure()
	}
}
