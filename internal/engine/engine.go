package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"vividsync/internal/domains/order"
	"vividsync/internal/metrics"
	"vividsync/internal/store"
	"vividsync/pkg/logger"
)

// ErrRunInFlight 已有同步批次在跑，新触发被拒绝
var ErrRunInFlight = errors.New("sync run already in flight")

// Phase 批次阶段
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFetching  Phase = "fetching"
	PhaseEnriching Phase = "enriching"
)

// 拉取来源标识（日志与指标用）
const (
	sourceShipment   = "shipment"
	sourceRetransfer = "retransfer"
)

// Fetcher 远端读接口（客户端实现；测试注入假实现）
type Fetcher interface {
	FetchPendingShipment(ctx context.Context) ([]order.FieldMap, error)
	FetchPendingRetransfer(ctx context.Context) ([]order.FieldMap, error)
	FetchOrderDetail(ctx context.Context, orderID string) (order.FieldMap, error)
}

// Snapshotter 批次落盘接口
type Snapshotter interface {
	WriteBatch(ctx context.Context, records []order.FieldMap) (string, error)
}

// RunReport 一个批次的结果汇总
type RunReport struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration"`
	Fetched      int       `json:"fetched"`       // 两个来源合计拉到的记录数
	NewRecords   int       `json:"new_records"`   // 本批次新增
	Enriched     int       `json:"enriched"`      // 富集成功
	EnrichFailed int       `json:"enrich_failed"` // 富集失败（跳过）
	SnapshotPath string    `json:"snapshot_path,omitempty"`
}

// Status 引擎当前状态（触发按钮的禁用依据）
type Status struct {
	Phase      Phase      `json:"phase"`
	RunID      string     `json:"run_id,omitempty"`
	LastReport *RunReport `json:"last_report,omitempty"`
}

// Engine 同步引擎：双源拉取 → 去重入库 → 批次落盘 → 逐单富集。
// 同一时刻至多一个批次在跑；批次一旦开始总是跑完，不支持取消。
type Engine struct {
	fetcher   Fetcher
	store     *store.RecordStore
	snapshots Snapshotter
	metrics   *metrics.Registry
	logger    logger.Logger

	running *atomic.Bool

	mu         sync.RWMutex
	phase      Phase
	runID      string
	lastReport *RunReport
}

// NewEngine 创建同步引擎
func NewEngine(fetcher Fetcher, st *store.RecordStore, snapshots Snapshotter, reg *metrics.Registry, log logger.Logger) *Engine {
	return &Engine{
		fetcher:   fetcher,
		store:     st,
		snapshots: snapshots,
		metrics:   reg,
		logger:    log,
		running:   atomic.NewBool(false),
		phase:     PhaseIdle,
	}
}

// Run 同步执行一个批次。已有批次在跑时立即返回 ErrRunInFlight。
func (e *Engine) Run(ctx context.Context) (RunReport, error) {
	if !e.running.CAS(false, true) {
		e.metrics.SyncRejected.Inc()
		return RunReport{}, ErrRunInFlight
	}
	defer e.running.Store(false)

	return e.run(ctx, uuid.New().String()), nil
}

// StartAsync 后台启动一个批次，立即返回批次 ID。
// 已有批次在跑时返回 ErrRunInFlight，不排队。
func (e *Engine) StartAsync() (string, error) {
	if !e.running.CAS(false, true) {
		e.metrics.SyncRejected.Inc()
		return "", ErrRunInFlight
	}

	runID := uuid.New().String()
	go func() {
		// 批次总是跑完：不挂接调用方的 Context
		defer e.running.Store(false)
		e.run(context.Background(), runID)
	}()
	return runID, nil
}

// Status 当前阶段与上一批次汇总
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		Phase:      e.phase,
		RunID:      e.runID,
		LastReport: e.lastReport,
	}
}

// run 执行批次主流程。调用前必须已持有 running 标记。
func (e *Engine) run(ctx context.Context, runID string) RunReport {
	started := time.Now()
	ctx = context.WithValue(ctx, "run_id", runID)

	e.metrics.SyncRuns.Inc()
	e.setPhase(PhaseFetching, runID)
	e.logger.Infof(ctx, "[Engine] run started")

	// 1. 顺序双源拉取：先待发货，后待再转移。
	// 单源失败只丢该源的结果，另一源照常合并。
	combined := e.fetchSource(ctx, sourceShipment, e.fetcher.FetchPendingShipment)
	combined = append(combined, e.fetchSource(ctx, sourceRetransfer, e.fetcher.FetchPendingRetransfer)...)

	// 2. 去重入库，按到达顺序收集本批次新增
	var batchNew []order.FieldMap
	for _, rec := range combined {
		if e.store.UpsertBase(ctx, rec) {
			batchNew = append(batchNew, rec)
		}
	}
	e.metrics.RecordsNew.Add(float64(len(batchNew)))
	e.metrics.StoreSize.Set(float64(e.store.Len()))

	report := RunReport{
		RunID:      runID,
		StartedAt:  started,
		Fetched:    len(combined),
		NewRecords: len(batchNew),
	}

	// 3. 批次落盘。落盘失败不中断批次，富集照常进行。
	if len(batchNew) > 0 {
		path, err := e.snapshots.WriteBatch(ctx, batchNew)
		if err != nil {
			e.logger.Errorf(ctx, "[Engine] snapshot write failed: %v", err)
		} else {
			report.SnapshotPath = path
		}
	} else {
		e.logger.Infof(ctx, "[Engine] no new records this run")
	}

	// 4. 逐单富集：串行拉详情，成功即合并，读方立刻可见。
	// 单单失败跳过，不影响后续。
	e.setPhase(PhaseEnriching, runID)
	for _, rec := range batchNew {
		id := rec[order.FieldOrderID]
		detail, err := e.fetcher.FetchOrderDetail(ctx, id)
		if err != nil {
			report.EnrichFailed++
			e.metrics.EnrichFailed.Inc()
			e.logger.Warnf(ctx, "[Engine] enrichment failed for %s: %v", id, err)
			continue
		}
		e.store.MergeOverlay(ctx, id, detail)
		report.Enriched++
		e.metrics.EnrichOK.Inc()
	}

	// 5. 整批完成只发一次信号
	report.Duration = time.Since(started).String()
	e.metrics.SyncDurationSec.Observe(time.Since(started).Seconds())
	e.finish(report)
	e.store.Notify(ctx, store.Notification{
		Type:      store.NotifySyncComplete,
		Message:   runID,
		Timestamp: time.Now().Unix(),
	})
	e.logger.Infof(ctx, "[Engine] run complete: fetched=%d new=%d enriched=%d failed=%d duration=%s",
		report.Fetched, report.NewRecords, report.Enriched, report.EnrichFailed, report.Duration)

	return report
}

// fetchSource 拉取单个列表来源；失败折叠为空序列并记日志/指标
func (e *Engine) fetchSource(ctx context.Context, source string, fetch func(context.Context) ([]order.FieldMap, error)) []order.FieldMap {
	e.logger.Infof(ctx, "[Engine] fetching %s orders", source)
	records, err := fetch(ctx)
	if err != nil {
		e.metrics.FetchFailures.WithLabelValues(source).Inc()
		e.logger.Errorf(ctx, "[Engine] %s fetch failed: %v", source, err)
		return nil
	}
	e.logger.Infof(ctx, "[Engine] %s fetch returned %d records", source, len(records))
	return records
}

// setPhase 更新批次阶段
func (e *Engine) setPhase(p Phase, runID string) {
	e.mu.Lock()
	e.phase = p
	e.runID = runID
	e.mu.Unlock()
}

// finish 记录批次汇总并回到空闲态
func (e *Engine) finish(report RunReport) {
	e.mu.Lock()
	e.phase = PhaseIdle
	e.runID = ""
	e.lastReport = &report
	e.mu.Unlock()
}
