package order

import (
	"vividsync/internal/store"
	"vividsync/internal/transfer"
	"vividsync/pkg/logger"
)

// OrderHandler 订单 HTTP 处理器
type OrderHandler struct {
	store    *store.RecordStore
	executor *transfer.Executor
	logger   logger.Logger
}

// NewOrderHandler 创建订单处理器实例
func NewOrderHandler(st *store.RecordStore, executor *transfer.Executor, log logger.Logger) *OrderHandler {
	return &OrderHandler{
		store:    st,
		executor: executor,
		logger:   log,
	}
}
