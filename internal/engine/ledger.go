package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order 是一笔市价委托请求。
type Order struct {
	Symbol string  `json:"symbol"`
	Side   Side    `json:"side"`
	Qty    float64 `json:"qty"`
}

// normalize 校验并规范化委托；side 大小写不敏感。
func (o Order) normalize() (Order, error) {
	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	o.Side = Side(strings.ToUpper(strings.TrimSpace(string(o.Side))))
	if o.Symbol == "" {
		return o, fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if o.Side == "" {
		return o, fmt.Errorf("%w: side is required", ErrInvalidOrder)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return o, fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrInvalidOrder, o.Side)
	}
	if math.IsNaN(o.Qty) || math.IsInf(o.Qty, 0) || o.Qty <= 0 {
		return o, fmt.Errorf("%w: qty must be > 0", ErrInvalidOrder)
	}
	return o, nil
}

type PositionView struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgPrice      float64 `json:"avgPrice"`
	UnrealizedPnL float64 `json:"unrealizedPnL"`
}

// AccountSnapshot 是账户在某个标记价格下的视图。
type AccountSnapshot struct {
	Balance     float64        `json:"balance"`
	RealizedPnL float64        `json:"realizedPnL"`
	Positions   []PositionView `json:"positions"`
	MarkPrice   float64        `json:"markPrice,omitempty"`
}

type lot struct {
	qty      decimal.Decimal
	avgPrice decimal.Decimal
}

// ledger 持有资金、已实现盈亏与持仓。调用方负责加锁。
type ledger struct {
	starting  decimal.Decimal
	balance   decimal.Decimal
	realized  decimal.Decimal
	positions map[string]*lot
}

func newLedger(startingBalance float64) *ledger {
	l := &ledger{starting: decimal.NewFromFloat(startingBalance)}
	l.reset()
	return l
}

func (l *ledger) reset() {
	l.balance = l.starting
	l.realized = decimal.Zero
	l.positions = make(map[string]*lot)
}

// apply 以 price 成交一笔已规范化的委托；失败时不修改任何状态。
func (l *ledger) apply(o Order, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%w: invalid execution price %v", ErrMarketNotReady, price)
	}
	px := decimal.NewFromFloat(price)
	qty := decimal.NewFromFloat(o.Qty)
	switch o.Side {
	case SideBuy:
		cost := px.Mul(qty)
		if cost.GreaterThan(l.balance) {
			return fmt.Errorf("%w: cost %s exceeds balance %s", ErrInsufficientFunds, cost.StringFixed(2), l.balance.StringFixed(2))
		}
		l.balance = l.balance.Sub(cost)
		pos, ok := l.positions[o.Symbol]
		if !ok {
			l.positions[o.Symbol] = &lot{qty: qty, avgPrice: px}
			return nil
		}
		newQty := pos.qty.Add(qty)
		pos.avgPrice = pos.avgPrice.Mul(pos.qty).Add(cost).Div(newQty)
		pos.qty = newQty
		return nil
	case SideSell:
		pos, ok := l.positions[o.Symbol]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoPosition, o.Symbol)
		}
		if pos.qty.LessThan(qty) {
			return fmt.Errorf("%w: hold %s, sell %s", ErrInsufficientShares, pos.qty.String(), qty.String())
		}
		l.realized = l.realized.Add(px.Sub(pos.avgPrice).Mul(qty))
		l.balance = l.balance.Add(px.Mul(qty))
		pos.qty = pos.qty.Sub(qty)
		if pos.qty.IsZero() {
			delete(l.positions, o.Symbol)
		}
		return nil
	default:
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, o.Side)
	}
}

// snapshot 以 mark 计算未实现盈亏，持仓按代码排序。
func (l *ledger) snapshot(mark float64) AccountSnapshot {
	px := decimal.NewFromFloat(mark)
	snap := AccountSnapshot{
		Balance:     decToFloat(l.balance),
		RealizedPnL: decToFloat(l.realized),
		Positions:   make([]PositionView, 0, len(l.positions)),
		MarkPrice:   mark,
	}
	for sym, pos := range l.positions {
		view := PositionView{
			Symbol:   sym,
			Qty:      decToFloat(pos.qty),
			AvgPrice: decToFloat(pos.avgPrice),
		}
		if mark > 0 {
			view.UnrealizedPnL = decToFloat(px.Sub(pos.avgPrice).Mul(pos.qty))
		}
		snap.Positions = append(snap.Positions, view)
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].Symbol < snap.Positions[j].Symbol
	})
	return snap
}

func decToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
