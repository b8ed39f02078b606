package order

import (
	"time"
)

// FieldMap 开放字段集：远端各接口的字段会持续增加，
// 因此记录用 字段名 → 字符串值 的映射表示，而不是固定结构体
type FieldMap map[string]string

// 关键字段名（远端 XML 子元素标签）
const (
	FieldOrderID        = "orderId"
	FieldEvent          = "event"
	FieldEventDate      = "eventDate"
	FieldQuantity       = "quantity"
	FieldStatus         = "status"
	FieldOrderToken     = "orderToken"
	FieldTransferViaURL = "transferViaURL"

	// 转移执行结果回写的覆盖层审计字段
	FieldLastTransferResult = "lastTransferResult"
	FieldLastTransferStatus = "lastTransferStatus"
	FieldLastTransferAt     = "lastTransferAt"
)

// EventDateLayout 演出时间的固定格式
const EventDateLayout = "2006-01-02 15:04:05"

// StaleAfter 列表过滤阈值：演出时间早于 now-12h 视为过期
const StaleAfter = 12 * time.Hour

// 经纪侧订单状态枚举（远端定义）
const (
	StatusPendingShipment = "PENDING_SHIPMENT"
	StatusShipped         = "SHIPPED"
	StatusCompleted       = "COMPLETED"
	StatusCancelled       = "CANCELLED"
)

// Clone 浅拷贝字段表
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// NonEmptyCount 非空值字段数（快照还原时判定"已富集"用）
func (f FieldMap) NonEmptyCount() int {
	n := 0
	for _, v := range f {
		if v != "" {
			n++
		}
	}
	return n
}

// Effective 生效字段：以 base 为底，overlay 覆盖同名字段。
// orderId 不可变，overlay 中的 orderId 不参与覆盖。
// 纯函数，不修改入参。
func Effective(base, overlay FieldMap) FieldMap {
	out := make(FieldMap, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if k == FieldOrderID {
			continue
		}
		out[k] = v
	}
	if id, ok := base[FieldOrderID]; ok {
		out[FieldOrderID] = id
	}
	return out
}

// EventDate 解析演出时间；缺失或格式异常返回 ok=false（记录退化为"无日期"）
func (f FieldMap) EventDate() (time.Time, bool) {
	raw, ok := f[FieldEventDate]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(EventDateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// IsStale 演出时间早于 now-12h 返回 true；无日期记录永不过期
func (f FieldMap) IsStale(now time.Time) bool {
	ts, ok := f.EventDate()
	if !ok {
		return false
	}
	return ts.Before(now.Add(-StaleAfter))
}

// TransferEligible 转移资格：overlay 或 base 的 transferViaURL 字面值为 "true"
func TransferEligible(base, overlay FieldMap) bool {
	return overlay[FieldTransferViaURL] == "true" || base[FieldTransferViaURL] == "true"
}
