package order

import (
	"github.com/gin-gonic/gin"

	"vividsync/pkg/ginx"
)

// DetailResponse 订单详情响应（完整生效字段表）
type DetailResponse struct {
	OrderID      string            `json:"order_id"`
	Enriched     bool              `json:"enriched"`
	Transferable bool              `json:"transferable"`
	Fields       map[string]string `json:"fields"`
}

// Get 订单详情接口
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		ginx.BadRequest(c, "order id required")
		return
	}

	eff, ok := h.store.Effective(orderID)
	if !ok {
		ginx.NotFound(c, "order not found")
		return
	}

	ginx.Success(c, DetailResponse{
		OrderID:      orderID,
		Enriched:     h.store.Enriched(orderID),
		Transferable: h.store.TransferEligible(orderID),
		Fields:       eff,
	})
}
