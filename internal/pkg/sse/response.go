package sse

import (
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ReconnectDelay 浏览器 EventSource 断线后的重连间隔
const ReconnectDelay = 3 * time.Second

// StreamResponse 注册 client 并持续写出事件, 直到请求结束或 hub 关闭通道.
// 每个事件带连接内递增的 id, 空闲时按 keepAlive 写注释行保活.
func StreamResponse(c *gin.Context, client *Client, hub *Hub, keepAlive time.Duration) {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(200)

	hub.Register(client)
	defer hub.Unregister(client)

	var seq uint64
	send := func(payload string) bool {
		if _, err := io.WriteString(c.Writer, payload); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}
	sendEvent := func(ev Event) bool {
		seq++
		return send("id: " + strconv.FormatUint(seq, 10) + "\n" + ev.FormatSSE())
	}

	hello := Event{Type: "connected", Data: map[string]string{
		"client_id": client.ID,
		"resource":  client.Resource,
	}}
	if !send("retry: "+strconv.FormatInt(ReconnectDelay.Milliseconds(), 10)+"\n\n") || !sendEvent(hello) {
		return
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-client.Channel:
			if !ok || !sendEvent(ev) {
				return
			}
		case <-ticker.C:
			if !send(": heartbeat\n\n") {
				return
			}
		}
	}
}
