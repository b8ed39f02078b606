package order

import (
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	record "vividsync/internal/domains/order"
	"vividsync/pkg/ginx"
)

// OrderSummary 列表项（生效字段的摘要列）
type OrderSummary struct {
	OrderID      string `json:"order_id"`
	Event        string `json:"event"`
	EventDate    string `json:"event_date"`
	Quantity     string `json:"quantity"`
	Status       string `json:"status"`
	Transferable bool   `json:"transferable"`
	Enriched     bool   `json:"enriched"`
}

// ListResponse 列表响应
type ListResponse struct {
	Total  int            `json:"total"`
	Hidden int            `json:"hidden"` // 被过期过滤掉的条数
	Orders []OrderSummary `json:"orders"`
}

// List 订单列表接口
// GET /api/v1/orders?hide_past=true&sort=event_date
// hide_past 默认开启：演出时间早于 now-12h 的记录不返回，无日期记录保留
func (h *OrderHandler) List(c *gin.Context) {
	hidePast := true
	if raw := c.Query("hide_past"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			hidePast = v
		}
	}

	now := time.Now()
	resp := ListResponse{Orders: make([]OrderSummary, 0)}

	// 存储层只保证插入序，排序在这里做
	h.store.ForEach(func(orderID string, eff record.FieldMap) bool {
		resp.Total++
		if hidePast && eff.IsStale(now) {
			resp.Hidden++
			return true
		}
		resp.Orders = append(resp.Orders, OrderSummary{
			OrderID:      orderID,
			Event:        eff[record.FieldEvent],
			EventDate:    eff[record.FieldEventDate],
			Quantity:     eff[record.FieldQuantity],
			Status:       eff[record.FieldStatus],
			Transferable: h.store.TransferEligible(orderID),
			Enriched:     h.store.Enriched(orderID),
		})
		return true
	})

	if c.Query("sort") == "event_date" {
		sortByEventDate(resp.Orders)
	}

	ginx.Success(c, resp)
}

// sortByEventDate 按演出时间升序，无日期的排最后
func sortByEventDate(orders []OrderSummary) {
	sort.SliceStable(orders, func(i, j int) bool {
		ti, erri := time.Parse(record.EventDateLayout, orders[i].EventDate)
		tj, errj := time.Parse(record.EventDateLayout, orders[j].EventDate)
		if erri != nil {
			return false
		}
		if errj != nil {
			return true
		}
		return ti.Before(tj)
	})
}
