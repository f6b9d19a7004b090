package simhttp

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleStream 以 SSE 推送每根新揭示的 K 线（仅 data 字段），并定期发送注释行保活。
func (r *Router) handleStream(c *gin.Context) {
	id, bars := r.engine.Subscribe()
	defer r.engine.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(r.heartbeat)
	defer heartbeat.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-bars:
			if !ok {
				return
			}
			c.SSEvent("", bar)
			c.Writer.Flush()
		case <-heartbeat.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
