package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 引擎指标集合
type Registry struct {
	reg *prometheus.Registry

	SyncRuns         prometheus.Counter     // 同步批次总数
	SyncRejected     prometheus.Counter     // 因已有批次在跑被拒绝的触发数
	RecordsNew       prometheus.Counter     // 新发现记录总数
	FetchFailures    *prometheus.CounterVec // 列表拉取失败（按来源）
	EnrichOK         prometheus.Counter     // 富集成功数
	EnrichFailed     prometheus.Counter     // 富集失败数
	SyncDurationSec  prometheus.Histogram   // 批次总时长
	TransferOutcomes *prometheus.CounterVec // 转移结果（按三态）
	StoreSize        prometheus.Gauge       // 当前记录库大小
}

// NewRegistry 创建并注册全部指标
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	syncRuns := prometheus.NewCounter(prometheus.CounterOpts{Name: "vividsync_runs_total"})
	syncRejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "vividsync_runs_rejected_total"})
	recordsNew := prometheus.NewCounter(prometheus.CounterOpts{Name: "vividsync_records_new_total"})
	fetchFailures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "vividsync_fetch_failures_total"}, []string{"source"})
	enrichOK := prometheus.NewCounter(prometheus.CounterOpts{Name: "vividsync_enrich_ok_total"})
	enrichFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "vividsync_enrich_failed_total"})
	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vividsync_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	transferOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "vividsync_transfer_outcomes_total"}, []string{"outcome"})
	storeSize := prometheus.NewGauge(prometheus.GaugeOpts{Name: "vividsync_store_records"})

	r.MustRegister(syncRuns, syncRejected, recordsNew, fetchFailures, enrichOK, enrichFailed, syncDuration, transferOutcomes, storeSize)

	return &Registry{
		reg:              r,
		SyncRuns:         syncRuns,
		SyncRejected:     syncRejected,
		RecordsNew:       recordsNew,
		FetchFailures:    fetchFailures,
		EnrichOK:         enrichOK,
		EnrichFailed:     enrichFailed,
		SyncDurationSec:  syncDuration,
		TransferOutcomes: transferOutcomes,
		StoreSize:        storeSize,
	}
}

// Handler /metrics 处理器
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
