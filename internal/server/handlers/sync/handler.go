package sync

import (
	"errors"

	"github.com/gin-gonic/gin"

	"vividsync/internal/engine"
	"vividsync/pkg/ginx"
	"vividsync/pkg/logger"
)

// SyncHandler 同步触发与状态查询处理器
type SyncHandler struct {
	engine *engine.Engine
	logger logger.Logger
}

// NewSyncHandler 创建同步处理器实例
func NewSyncHandler(eng *engine.Engine, log logger.Logger) *SyncHandler {
	return &SyncHandler{
		engine: eng,
		logger: log,
	}
}

// StartData 批次启动响应
type StartData struct {
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

// Start 触发一个后台同步批次
// POST /api/v1/sync
// 已有批次在跑返回 409（同一时刻至多一个批次）
func (h *SyncHandler) Start(c *gin.Context) {
	runID, err := h.engine.StartAsync()
	if err != nil {
		if errors.Is(err, engine.ErrRunInFlight) {
			ginx.Conflict(c, "sync run already in flight")
			return
		}
		h.logger.Errorf(c.Request.Context(), "[HTTP] sync start failed: %v", err)
		ginx.InternalError(c, err.Error())
		return
	}

	ginx.Accepted(c, StartData{
		RunID:     runID,
		StatusURL: "/api/v1/sync/status",
	})
}

// Status 当前批次阶段与上一批次汇总
// GET /api/v1/sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	ginx.Success(c, h.engine.Status())
}
