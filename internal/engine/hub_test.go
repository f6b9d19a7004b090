package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/internal/market"
)

func TestHubPublishReachesAllSubscribers(t *testing.T) {
	h := NewHub()
	_, a := h.Subscribe()
	_, b := h.Subscribe()

	h.Publish("", market.Candle{Time: 1, Close: 10})

	assert.Equal(t, 10.0, (<-a).Close)
	assert.Equal(t, 10.0, (<-b).Close)
}

func TestHubLateSubscriberGetsNoBacklog(t *testing.T) {
	h := NewHub()
	h.Publish("", market.Candle{Time: 1})
	_, ch := h.Subscribe()
	select {
	case <-ch:
		t.Fatal("late subscriber must not receive earlier bars")
	default:
	}
	h.Publish("", market.Candle{Time: 2})
	assert.Equal(t, int64(2), (<-ch).Time)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe()
	h.Unsubscribe(id)
	h.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, h.Len())
}

func TestHubDropsLaggingSubscriber(t *testing.T) {
	h := NewHub()
	_, slow := h.Subscribe()
	fastID, fast := h.Subscribe()
	for i := 0; i < subscriberBuffer; i++ {
		h.Publish("", market.Candle{Time: int64(i)})
		<-fast
	}
	h.Publish("", market.Candle{Time: 999})
	require.Equal(t, 1, h.Len())
	assert.Equal(t, int64(999), (<-fast).Time)

	n := 0
	for range slow {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
	h.Unsubscribe(fastID)
}

func TestHubDropsBarsFromReplacedSession(t *testing.T) {
	h := NewHub()
	h.SetSession("s1")
	_, ch := h.Subscribe()

	assert.True(t, h.Publish("s1", market.Candle{Time: 1}))
	h.SetSession("s2")
	assert.False(t, h.Publish("s1", market.Candle{Time: 2}))
	assert.True(t, h.Publish("s2", market.Candle{Time: 3}))

	assert.Equal(t, int64(1), (<-ch).Time)
	assert.Equal(t, int64(3), (<-ch).Time)
	select {
	case bar := <-ch:
		t.Fatalf("unexpected bar %d", bar.Time)
	default:
	}
}
