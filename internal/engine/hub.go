package engine

import (
	"sync"
	"sync/atomic"

	"papersim/internal/logger"
	"papersim/internal/market"
)

const subscriberBuffer = 128

// Hub 把揭示出的 K 线广播给所有订阅者，不回放历史。
// 订阅集合有独立的锁，与交易状态互不阻塞。
type Hub struct {
	mu      sync.RWMutex
	subs    map[int64]chan market.Candle
	seq     atomic.Int64
	session string
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int64]chan market.Candle),
	}
}

func (h *Hub) Subscribe() (int64, <-chan market.Candle) {
	id := h.seq.Add(1)
	ch := make(chan market.Candle, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe 关闭并移除订阅；重复调用无副作用。
func (h *Hub) Unsubscribe(id int64) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// SetSession 记录当前会话 id；此后旧会话的 Publish 全部丢弃。
func (h *Hub) SetSession(id string) {
	h.mu.Lock()
	h.session = id
	h.mu.Unlock()
}

// Publish 仅当 sessionID 仍是当前会话时广播，返回是否已发送。
// 缓冲区已满的订阅者被断开。
// 节拍在引擎锁外广播，期间可能已切换会话。
func (h *Hub) Publish(sessionID string, bar market.Candle) bool {
	h.mu.RLock()
	if h.session != sessionID {
		h.mu.RUnlock()
		logger.Debugf("stream hub: 丢弃旧会话 %s 的 K 线 t=%d", sessionID, bar.Time)
		return false
	}
	lagging := h.sendLocked(bar)
	h.mu.RUnlock()
	h.evict(lagging)
	return true
}

// sendLocked 非阻塞发送，返回缓冲区已满的订阅者；调用方持有读锁。
func (h *Hub) sendLocked(bar market.Candle) []int64 {
	var lagging []int64
	for id, ch := range h.subs {
		select {
		case ch <- bar:
		default:
			lagging = append(lagging, id)
		}
	}
	return lagging
}

func (h *Hub) evict(lagging []int64) {
	if len(lagging) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range lagging {
		if ch, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
			logger.Warnf("stream hub: 订阅者 %d 缓冲区已满，已断开", id)
		}
	}
	h.mu.Unlock()
}
