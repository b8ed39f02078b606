package audit

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"vividsync/pkg/ginx"
	"vividsync/pkg/infra/mysql"
	"vividsync/pkg/logger"
)

// AuditHandler 转移审计查询处理器
type AuditHandler struct {
	dao    *mysql.TransferAuditDAO // 未配置 MySQL 时为 nil
	logger logger.Logger
}

// NewAuditHandler 创建审计处理器实例
func NewAuditHandler(dao *mysql.TransferAuditDAO, log logger.Logger) *AuditHandler {
	return &AuditHandler{
		dao:    dao,
		logger: log,
	}
}

// Recent 最近的转移尝试
// GET /api/v1/transfers?limit=20
func (h *AuditHandler) Recent(c *gin.Context) {
	if h.dao == nil {
		ginx.ServiceUnavailable(c, "transfer audit storage not configured")
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	attempts, err := h.dao.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorf(c.Request.Context(), "[HTTP] audit query failed: %v", err)
		ginx.InternalError(c, err.Error())
		return
	}

	ginx.Success(c, attempts)
}
