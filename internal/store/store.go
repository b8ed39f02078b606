package store

import (
	"context"
	"sync"
	"time"

	"vividsync/internal/domains/order"
	"vividsync/pkg/logger"
)

// NotificationType 通知类型
type NotificationType string

const (
	// NotifyRecordUpserted 新基础记录入库
	NotifyRecordUpserted NotificationType = "record_upserted"
	// NotifyOverlayMerged 覆盖层合并完成（富集增量可见）
	NotifyOverlayMerged NotificationType = "overlay_merged"
	// NotifySyncComplete 同步批次整体完成
	NotifySyncComplete NotificationType = "sync_complete"
	// NotifyTransferExecuted 转移执行完成（成功与否都通知）
	NotifyTransferExecuted NotificationType = "transfer_executed"
)

// Notification 存储变更通知（视图层增量刷新用）
type Notification struct {
	Type      NotificationType `json:"type"`
	OrderID   string           `json:"order_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// subscriberBuffer 订阅通道缓冲大小；写满即丢弃，写入方永不阻塞
const subscriberBuffer = 64

// RecordStore 订单记录库：基础记录按插入顺序保存，覆盖层单独成表。
// 会话内只增不删；对并发调用方安全。
type RecordStore struct {
	mu      sync.RWMutex
	ids     []string                  // 插入顺序
	base    map[string]order.FieldMap // orderId → 基础记录
	overlay map[string]order.FieldMap // orderId → 富集覆盖层
	subs    map[int]chan Notification // 订阅者
	nextSub int
	logger  logger.Logger
}

// NewRecordStore 创建记录库
func NewRecordStore(log logger.Logger) *RecordStore {
	return &RecordStore{
		base:    make(map[string]order.FieldMap),
		overlay: make(map[string]order.FieldMap),
		subs:    make(map[int]chan Notification),
		logger:  log,
	}
}

// UpsertBase 写入基础记录。orderId 未出现过则插入并返回 true；
// 已存在则保持原记录不动，返回 false（首写者胜）。
func (s *RecordStore) UpsertBase(ctx context.Context, rec order.FieldMap) bool {
	id := rec[order.FieldOrderID]
	if id == "" {
		s.logger.Warnf(ctx, "[RecordStore] dropping record without orderId (%d fields)", len(rec))
		return false
	}

	s.mu.Lock()
	if _, exists := s.base[id]; exists {
		s.mu.Unlock()
		return false
	}
	s.base[id] = rec.Clone()
	s.ids = append(s.ids, id)
	s.mu.Unlock()

	s.notify(ctx, Notification{
		Type:      NotifyRecordUpserted,
		OrderID:   id,
		Timestamp: time.Now().Unix(),
	})
	return true
}

// MergeOverlay 把 fields 并入指定记录的覆盖层，同名键覆盖。
// orderId 未知时仅记日志，不报错。
func (s *RecordStore) MergeOverlay(ctx context.Context, orderID string, fields order.FieldMap) {
	if orderID == "" || len(fields) == 0 {
		return
	}

	s.mu.Lock()
	if _, exists := s.base[orderID]; !exists {
		s.mu.Unlock()
		s.logger.Warnf(ctx, "[RecordStore] overlay merge for unknown order: %s", orderID)
		return
	}
	ov, ok := s.overlay[orderID]
	if !ok {
		ov = make(order.FieldMap, len(fields))
		s.overlay[orderID] = ov
	}
	for k, v := range fields {
		ov[k] = v
	}
	s.mu.Unlock()

	s.notify(ctx, Notification{
		Type:      NotifyOverlayMerged,
		OrderID:   orderID,
		Timestamp: time.Now().Unix(),
	})
}

// Effective 生效字段表（基础记录叠加覆盖层）；orderId 未知返回 ok=false
func (s *RecordStore) Effective(orderID string) (order.FieldMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	base, ok := s.base[orderID]
	if !ok {
		return nil, false
	}
	return order.Effective(base, s.overlay[orderID]), true
}

// Base 基础记录拷贝；orderId 未知返回 ok=false
func (s *RecordStore) Base(orderID string) (order.FieldMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.base[orderID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Enriched 指定记录是否已有覆盖层
func (s *RecordStore) Enriched(orderID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.overlay[orderID]
	return ok
}

// TransferEligible 指定记录的转移资格（base/overlay 任一 transferViaURL == "true"）
func (s *RecordStore) TransferEligible(orderID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	base, ok := s.base[orderID]
	if !ok {
		return false
	}
	return order.TransferEligible(base, s.overlay[orderID])
}

// All 全部 orderId，插入顺序。排序是展示层的事，这里不做。
func (s *RecordStore) All() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// ForEach 按插入顺序遍历生效记录；fn 返回 false 提前终止
func (s *RecordStore) ForEach(fn func(orderID string, effective order.FieldMap) bool) {
	for _, id := range s.All() {
		eff, ok := s.Effective(id)
		if !ok {
			continue
		}
		if !fn(id, eff) {
			return
		}
	}
}

// Len 记录总数
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Subscribe 订阅变更通知。返回的取消函数负责注销并关闭通道。
func (s *RecordStore) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Notify 广播一条通知。写入方永不阻塞：订阅者跟不上就丢弃并告警。
// 同步引擎和转移执行器也通过这里发布 sync_complete / transfer_executed。
func (s *RecordStore) Notify(ctx context.Context, n Notification) {
	s.notify(ctx, n)
}

func (s *RecordStore) notify(ctx context.Context, n Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, ch := range s.subs {
		select {
		case ch <- n:
		default:
			s.logger.Warnf(ctx, "[RecordStore] subscriber %d lagging, dropping %s notification", id, n.Type)
		}
	}
}
