package events

import (
	"io"

	"github.com/gin-gonic/gin"

	"vividsync/internal/store"
	"vividsync/pkg/logger"
)

// EventsHandler 存储变更事件流处理器
type EventsHandler struct {
	store  *store.RecordStore
	logger logger.Logger
}

// NewEventsHandler 创建事件流处理器实例
func NewEventsHandler(st *store.RecordStore, log logger.Logger) *EventsHandler {
	return &EventsHandler{
		store:  st,
		logger: log,
	}
}

// Stream 订阅存储变更通知（SSE）
// GET /api/v1/events
// 每条新增记录、每次覆盖层合并、批次完成、转移执行各推一条事件
func (h *EventsHandler) Stream(c *gin.Context) {
	notifications, cancel := h.store.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	h.logger.Infof(c.Request.Context(), "[Events] subscriber connected: %s", c.ClientIP())

	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-notifications:
			if !ok {
				return false
			}
			c.SSEvent(string(n.Type), n)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})

	h.logger.Infof(c.Request.Context(), "[Events] subscriber disconnected: %s", c.ClientIP())
}
