package engine

import (
	"fmt"
	"time"

	"papersim/internal/market"
)

// session 是唯一的回放状态。所有方法都要求调用方持有 Engine.mu。
type session struct {
	id        string
	symbol    string
	candles   []market.Candle
	cursor    int
	running   bool
	startedAt time.Time
}

// SessionInfo 是 session 的只读快照。
type SessionInfo struct {
	ID        string         `json:"id,omitempty"`
	Symbol    string         `json:"symbol,omitempty"`
	Cursor    int            `json:"cursor"`
	Total     int            `json:"total"`
	Running   bool           `json:"running"`
	StartedAt time.Time      `json:"startedAt,omitempty"`
	LastBar   *market.Candle `json:"lastBar,omitempty"`
}

// Exhausted 表示所有 K 线都已揭示。
func (i SessionInfo) Exhausted() bool {
	return i.Total > 0 && i.Cursor >= i.Total
}

// start 整体替换回放状态；candles 必须非空且严格升序，否则不做任何修改。
func (s *session) start(id, symbol string, candles []market.Candle, now time.Time) error {
	if len(candles) == 0 {
		return fmt.Errorf("%w: %s", market.ErrEmptyCandleSet, symbol)
	}
	if err := market.ValidateSeries(candles); err != nil {
		return fmt.Errorf("%w: %v", market.ErrSourceUnavailable, err)
	}
	*s = session{
		id:        id,
		symbol:    symbol,
		candles:   candles,
		cursor:    0,
		running:   true,
		startedAt: now,
	}
	return nil
}

// advance 揭示下一根 K 线；未运行或已到末尾时返回 false。
func (s *session) advance() (market.Candle, bool) {
	if !s.running || s.cursor >= len(s.candles) {
		return market.Candle{}, false
	}
	bar := s.candles[s.cursor]
	s.cursor++
	return bar, true
}

func (s *session) currentBar() (market.Candle, bool) {
	if s.cursor == 0 {
		return market.Candle{}, false
	}
	return s.candles[s.cursor-1], true
}

// revealed 返回已揭示部分的副本。
func (s *session) revealed() []market.Candle {
	out := make([]market.Candle, s.cursor)
	copy(out, s.candles[:s.cursor])
	return out
}

func (s *session) info() SessionInfo {
	info := SessionInfo{
		ID:        s.id,
		Symbol:    s.symbol,
		Cursor:    s.cursor,
		Total:     len(s.candles),
		Running:   s.running,
		StartedAt: s.startedAt,
	}
	if bar, ok := s.currentBar(); ok {
		info.LastBar = &bar
	}
	return info
}
