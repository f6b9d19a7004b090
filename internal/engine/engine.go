package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"papersim/internal/logger"
	"papersim/internal/market"
)

// Fill 是一笔已成交委托，成交后交给 Recorder。
type Fill struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"sessionId"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Qty        float64         `json:"qty"`
	Price      float64         `json:"price"`
	BarTime    int64           `json:"barTime"`
	ExecutedAt time.Time       `json:"executedAt"`
	Account    AccountSnapshot `json:"account"`
}

// Recorder 接收会话与成交事件（审计用途）。调用发生在锁外，错误只记录日志。
type Recorder interface {
	RecordSession(ctx context.Context, info SessionInfo) error
	RecordFill(ctx context.Context, fill Fill) error
}

type Options struct {
	StartingBalance float64
	TickInterval    time.Duration
	FetchTimeout    time.Duration
	Recorder        Recorder
	Hub             *Hub
	Now             func() time.Time
}

// Engine 持有唯一的行情会话与账本，所有状态修改在同一把锁下串行执行。
type Engine struct {
	mu      sync.Mutex
	session session
	ledger  *ledger

	source       market.CandleSource
	hub          *Hub
	recorder     Recorder
	tickInterval time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
}

func New(source market.CandleSource, opts Options) *Engine {
	if opts.StartingBalance <= 0 {
		opts.StartingBalance = 100000
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		ledger:       newLedger(opts.StartingBalance),
		source:       source,
		hub:          opts.Hub,
		recorder:     opts.Recorder,
		tickInterval: opts.TickInterval,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
	}
}

// StartSession 拉取 K 线并整体替换会话，同时重置账本。
// 拉取在锁外进行；任何失败都不会影响当前会话。
func (e *Engine) StartSession(ctx context.Context, symbol string) (SessionInfo, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return SessionInfo{}, ErrMissingSymbol
	}
	fetchCtx := ctx
	if e.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
	}
	candles, err := e.source.FetchCandles(fetchCtx, symbol)
	if err != nil {
		return SessionInfo{}, classifyFetchError(err)
	}

	e.mu.Lock()
	if err := e.session.start(uuid.NewString(), symbol, candles, e.now()); err != nil {
		e.mu.Unlock()
		return SessionInfo{}, err
	}
	e.ledger.reset()
	e.hub.SetSession(e.session.id)
	info := e.session.info()
	e.mu.Unlock()

	logger.Infof("会话已启动: %s candles=%d id=%s", symbol, info.Total, info.ID)
	if e.recorder != nil {
		if err := e.recorder.RecordSession(context.WithoutCancel(ctx), info); err != nil {
			logger.Warnf("记录会话失败: %v", err)
		}
	}
	return info, nil
}

func classifyFetchError(err error) error {
	if errors.Is(err, market.ErrSourceUnavailable) || errors.Is(err, market.ErrEmptyCandleSet) {
		return err
	}
	return fmt.Errorf("%w: %v", market.ErrSourceUnavailable, err)
}

// Step 执行一次时钟节拍：推进一根 K 线并在锁外广播。
// 广播前若会话已被替换，该 K 线不会送达订阅者。
func (e *Engine) Step() (market.Candle, bool) {
	e.mu.Lock()
	bar, ok := e.session.advance()
	sessionID := e.session.id
	e.mu.Unlock()
	if ok {
		e.hub.Publish(sessionID, bar)
	}
	return bar, ok
}

// Run 按固定周期驱动回放，直到 ctx 结束。时钟不随会话切换重启。
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	logger.Infof("回放时钟已启动，周期 %s", e.tickInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("回放时钟已停止")
			return nil
		case <-ticker.C:
			e.Step()
		}
	}
}

// PlaceOrder 以最近揭示 K 线的收盘价成交委托。
func (e *Engine) PlaceOrder(ctx context.Context, order Order) (AccountSnapshot, error) {
	order, err := order.normalize()
	if err != nil {
		return AccountSnapshot{}, err
	}

	bar, snap, sessionID, err := e.execute(order)
	if err != nil {
		return AccountSnapshot{}, err
	}

	logger.Debugf("成交 %s %s qty=%g @ %g balance=%.2f", order.Side, order.Symbol, order.Qty, bar.Close, snap.Balance)
	if e.recorder != nil {
		fill := Fill{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Qty:        order.Qty,
			Price:      bar.Close,
			BarTime:    bar.Time,
			ExecutedAt: e.now(),
			Account:    snap,
		}
		if err := e.recorder.RecordFill(context.WithoutCancel(ctx), fill); err != nil {
			logger.Warnf("记录成交失败: %v", err)
		}
	}
	return snap, nil
}

// execute 在锁内校验并记账；返回成交所用 K 线与成交后的快照。
func (e *Engine) execute(order Order) (market.Candle, AccountSnapshot, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bar, ok := e.session.currentBar()
	if !ok {
		return market.Candle{}, AccountSnapshot{}, "", fmt.Errorf("%w: no bar revealed yet", ErrMarketNotReady)
	}
	if order.Symbol != e.session.symbol {
		return market.Candle{}, AccountSnapshot{}, "", fmt.Errorf("%w: active symbol is %s", ErrMarketNotReady, e.session.symbol)
	}
	if err := e.ledger.apply(order, bar.Close); err != nil {
		return market.Candle{}, AccountSnapshot{}, "", err
	}
	return bar, e.ledger.snapshot(bar.Close), e.session.id, nil
}

// Account 返回以当前 K 线收盘价标记的账户快照；尚无 K 线时未实现盈亏为 0。
func (e *Engine) Account() AccountSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	var mark float64
	if bar, ok := e.session.currentBar(); ok {
		mark = bar.Close
	}
	return e.ledger.snapshot(mark)
}

func (e *Engine) Session() SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.info()
}

// Revealed 返回当前会话已揭示的 K 线，供指标与图表使用。
func (e *Engine) Revealed() (string, []market.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.symbol, e.session.revealed()
}

func (e *Engine) Subscribe() (int64, <-chan market.Candle) {
	return e.hub.Subscribe()
}

func (e *Engine) Unsubscribe(id int64) {
	e.hub.Unsubscribe(id)
}

func (e *Engine) Hub() *Hub {
	return e.hub
}
