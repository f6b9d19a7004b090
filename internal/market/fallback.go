package market

import (
	"context"
	"fmt"
	"strings"

	"papersim/internal/logger"
)

// FetchFunc 拉取单一周期的 K 线。
type FetchFunc func(ctx context.Context, tf Timeframe) ([]Candle, error)

// FetchWithFallback 依次尝试 chain 中的周期，返回第一个非空结果及其周期。
// 任一周期出错立即返回该错误；全部为空时返回 ErrEmptyCandleSet。
func FetchWithFallback(ctx context.Context, symbol string, chain []Timeframe, fetch FetchFunc) ([]Candle, Timeframe, error) {
	tried := make([]string, 0, len(chain))
	for _, tf := range chain {
		if err := ctx.Err(); err != nil {
			return nil, Timeframe{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		candles, err := fetch(ctx, tf)
		if err != nil {
			return nil, tf, err
		}
		if len(candles) > 0 {
			return candles, tf, nil
		}
		tried = append(tried, tf.Key)
		logger.Debugf("%s 在 %s 周期无数据，尝试下一周期", symbol, tf.Key)
	}
	return nil, Timeframe{}, fmt.Errorf("%w: %s (tried %s)", ErrEmptyCandleSet, symbol, strings.Join(tried, ","))
}
