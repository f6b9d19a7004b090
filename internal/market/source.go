package market

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrSourceUnavailable 表示行情源网络失败、超时或返回格式异常。
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEmptyCandleSet 表示行情源正常返回但没有任何 K 线。
	ErrEmptyCandleSet = errors.New("empty candle set")
)

// SymbolMatch 是一次代码搜索的结果项。
type SymbolMatch struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// CandleSource 返回某个代码按时间升序排列的历史 K 线。
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string) ([]Candle, error)
}

// SymbolSearcher 按前缀/关键字查找代码；空查询返回空结果而非错误。
type SymbolSearcher interface {
	SearchSymbols(ctx context.Context, query string) ([]SymbolMatch, error)
}

// Source 同时提供 K 线与代码搜索。
type Source interface {
	CandleSource
	SymbolSearcher
	Name() string
}

// NormalizeSymbol 统一代码写法（去空白、大写）。
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
