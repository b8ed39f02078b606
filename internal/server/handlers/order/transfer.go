package order

import (
	"errors"

	"github.com/gin-gonic/gin"

	"vividsync/pkg/errorutil"
	"vividsync/pkg/ginx"
)

// TransferRequest 转移执行请求体
type TransferRequest struct {
	URLs []string `json:"urls" binding:"required,min=1"`
}

// Transfer 转移执行接口
// POST /api/v1/orders/:id/transfer
// 前置条件不满足返回 422（执行被拒绝，不是服务错误）
func (h *OrderHandler) Transfer(c *gin.Context) {
	orderID := c.Param("id")

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	result, err := h.executor.Execute(c.Request.Context(), orderID, req.URLs)
	if err != nil {
		var e *errorutil.Error
		if errors.As(err, &e) && e.Kind == errorutil.KindValidation {
			ginx.Unprocessable(c, e.Message)
			return
		}
		h.logger.Errorf(c.Request.Context(), "[HTTP] transfer execute failed: %v", err)
		ginx.InternalError(c, err.Error())
		return
	}

	ginx.Success(c, result)
}
