package engine

import (
	"errors"

	"papersim/internal/market"
)

var (
	ErrMissingSymbol      = errors.New("missing symbol")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrMarketNotReady     = errors.New("market not ready")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNoPosition         = errors.New("no position")
	ErrInsufficientShares = errors.New("insufficient shares")
)

// ErrorCode 返回错误对应的稳定代码，供 HTTP 层输出；未知错误返回 "Internal"。
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingSymbol):
		return "MissingSymbol"
	case errors.Is(err, market.ErrSourceUnavailable):
		return "SourceUnavailable"
	case errors.Is(err, market.ErrEmptyCandleSet):
		return "EmptyCandleSet"
	case errors.Is(err, ErrInvalidOrder):
		return "InvalidOrder"
	case errors.Is(err, ErrMarketNotReady):
		return "MarketNotReady"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrNoPosition):
		return "NoPosition"
	case errors.Is(err, ErrInsufficientShares):
		return "InsufficientShares"
	default:
		return "Internal"
	}
}
