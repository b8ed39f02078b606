package transfer

import (
	"context"
	"strings"
	"time"

	"vividsync/internal/domains/order"
	"vividsync/internal/metrics"
	"vividsync/internal/store"
	"vividsync/internal/vivid"
	"vividsync/pkg/errorutil"
	"vividsync/pkg/logger"
)

// Poster 转移提交接口（客户端实现；测试注入假实现）
type Poster interface {
	ExecuteTransfer(ctx context.Context, req vivid.TransferRequest) vivid.TransferOutcome
}

// AuditRecord 一次转移尝试的审计数据
type AuditRecord struct {
	OrderID string
	Outcome string
	Message string
	URLs    []string
	Fields  order.FieldMap // 执行时刻的生效字段
}

// AuditSink 审计落库接口（MySQL DAO 实现；未配置时为 nil）
type AuditSink interface {
	RecordTransfer(ctx context.Context, rec AuditRecord) error
}

// Result 转移执行结果（调用方可见）
type Result struct {
	Outcome    string `json:"outcome"` // true / false / unknown
	Message    string `json:"message"`
	ClearInput bool   `json:"clear_input"` // 仅远端确认成功时为 true
}

// Executor 转移执行器：校验前置条件、构造载荷、提交并回写结果
type Executor struct {
	poster  Poster
	store   *store.RecordStore
	audit   AuditSink
	metrics *metrics.Registry
	source  string // 固定溯源标识
	logger  logger.Logger
}

// NewExecutor 创建转移执行器。audit 可为 nil。
func NewExecutor(poster Poster, st *store.RecordStore, audit AuditSink, reg *metrics.Registry, source string, log logger.Logger) *Executor {
	return &Executor{
		poster:  poster,
		store:   st,
		audit:   audit,
		metrics: reg,
		source:  source,
		logger:  log,
	}
}

// Execute 对指定订单执行 URL 转移。
// 前置条件不满足时拒绝执行并返回校验错误（记日志，不提交）：
// 外层界面负责禁用入口，这里仍然重新校验。
func (e *Executor) Execute(ctx context.Context, orderID string, urls []string) (Result, error) {
	ctx = context.WithValue(ctx, "order_id", orderID)

	urls = cleanURLs(urls)

	// 前置校验：有选中目标、具备转移资格、至少一条非空 URL
	if orderID == "" {
		e.logger.Warnf(ctx, "[Transfer] declined: no order selected")
		return Result{}, errorutil.Validation("no order selected")
	}
	eff, ok := e.store.Effective(orderID)
	if !ok {
		e.logger.Warnf(ctx, "[Transfer] declined: unknown order %s", orderID)
		return Result{}, errorutil.Validation("unknown order: " + orderID)
	}
	if !e.store.TransferEligible(orderID) {
		e.logger.Warnf(ctx, "[Transfer] declined: order %s not eligible for URL transfer", orderID)
		return Result{}, errorutil.Validation("order not eligible for URL transfer")
	}
	if len(urls) == 0 {
		e.logger.Warnf(ctx, "[Transfer] declined: no transfer URLs supplied")
		return Result{}, errorutil.Validation("at least one transfer URL is required")
	}

	// 载荷：orderToken 取生效字段，transferSourceURL 固定取首条 URL
	req := vivid.TransferRequest{
		OrderID:    orderID,
		OrderToken: eff[order.FieldOrderToken],
		URLList:    urls,
		Source:     e.source,
		SourceURL:  urls[0],
	}

	outcome := e.poster.ExecuteTransfer(ctx, req)
	e.metrics.TransferOutcomes.WithLabelValues(outcome.Status.String()).Inc()
	e.logger.Infof(ctx, "[Transfer] order %s: success=%s message=%q",
		orderID, outcome.Status, outcome.Message)

	// 无论成败，结果都回写覆盖层供审计
	e.store.MergeOverlay(ctx, orderID, order.FieldMap{
		order.FieldLastTransferResult: outcome.Message,
		order.FieldLastTransferStatus: outcome.Status.String(),
		order.FieldLastTransferAt:     time.Now().Format(order.EventDateLayout),
	})
	e.store.Notify(ctx, store.Notification{
		Type:      store.NotifyTransferExecuted,
		OrderID:   orderID,
		Message:   outcome.Message,
		Timestamp: time.Now().Unix(),
	})

	// 审计落库尽力而为，失败只告警
	if e.audit != nil {
		rec := AuditRecord{
			OrderID: orderID,
			Outcome: outcome.Status.String(),
			Message: outcome.Message,
			URLs:    urls,
			Fields:  eff,
		}
		if err := e.audit.RecordTransfer(ctx, rec); err != nil {
			e.logger.Warnf(ctx, "[Transfer] audit write failed for %s: %v", orderID, err)
		}
	}

	return Result{
		Outcome:    outcome.Status.String(),
		Message:    outcome.Message,
		ClearInput: outcome.Status == vivid.TransferSucceeded,
	}, nil
}

// cleanURLs 去掉空白行，保留原始顺序
func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
