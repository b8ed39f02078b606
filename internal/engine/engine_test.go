package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vividsync/internal/domains/order"
	"vividsync/internal/metrics"
	"vividsync/internal/store"
	"vividsync/pkg/logger"
)

type fakeFetcher struct {
	shipment      []order.FieldMap
	shipmentErr   error
	retransfer    []order.FieldMap
	retransferErr error
	details       map[string]order.FieldMap
	detailErr     map[string]error

	started     chan struct{} // 非 nil 时：首次进入拉取后发信号
	startedOnce sync.Once
	release     chan struct{} // 非 nil 时：阻塞到被放行
}

func (f *fakeFetcher) FetchPendingShipment(ctx context.Context) ([]order.FieldMap, error) {
	if f.started != nil {
		f.startedOnce.Do(func() { close(f.started) })
	}
	if f.release != nil {
		<-f.release
	}
	return f.shipment, f.shipmentErr
}

func (f *fakeFetcher) FetchPendingRetransfer(ctx context.Context) ([]order.FieldMap, error) {
	return f.retransfer, f.retransferErr
}

func (f *fakeFetcher) FetchOrderDetail(ctx context.Context, orderID string) (order.FieldMap, error) {
	if err, ok := f.detailErr[orderID]; ok {
		return nil, err
	}
	if d, ok := f.details[orderID]; ok {
		return d, nil
	}
	return order.FieldMap{order.FieldOrderID: orderID}, nil
}

type fakeSnapshotter struct {
	batches [][]order.FieldMap
	err     error
}

func (f *fakeSnapshotter) WriteBatch(ctx context.Context, records []order.FieldMap) (string, error) {
	f.batches = append(f.batches, records)
	if f.err != nil {
		return "", f.err
	}
	return "snap.csv", nil
}

func rec(id string, extra ...string) order.FieldMap {
	m := order.FieldMap{order.FieldOrderID: id}
	for i := 0; i+1 < len(extra); i += 2 {
		m[extra[i]] = extra[i+1]
	}
	return m
}

func newTestEngine(f Fetcher, st *store.RecordStore, snaps Snapshotter) *Engine {
	return NewEngine(f, st, snaps, metrics.NewRegistry(), logger.NewNopLogger())
}

func TestRun_DedupAcrossSources(t *testing.T) {
	st := store.NewRecordStore(logger.NewNopLogger())
	ch, cancel := st.Subscribe()
	defer cancel()

	f := &fakeFetcher{
		shipment:   []order.FieldMap{rec("O1")},
		retransfer: []order.FieldMap{rec("O1")},
	}
	eng := newTestEngine(f, st, &fakeSnapshotter{})

	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Fetched != 2 || report.NewRecords != 1 {
		t.Fatalf("dedup report: %+v", report)
	}
	if st.Len() != 1 {
		t.Fatalf("store must hold exactly one record, len=%d", st.Len())
	}

	// 恰好一条 record_upserted 通知
	upserts := 0
	for {
		select {
		case n := <-ch:
			if n.Type == store.NotifyRecordUpserted {
				upserts++
			}
		default:
			if upserts != 1 {
				t.Fatalf("want exactly 1 upsert notification, got %d", upserts)
			}
			return
		}
	}
}

func TestRun_PartialAvailability(t *testing.T) {
	st := store.NewRecordStore(logger.NewNopLogger())
	f := &fakeFetcher{
		shipmentErr: errors.New("gateway timeout"),
		retransfer:  []order.FieldMap{rec("O1"), rec("O2")},
	}
	eng := newTestEngine(f, st, &fakeSnapshotter{})

	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("partial availability must not fail the run: %v", err)
	}
	if report.NewRecords != 2 || st.Len() != 2 {
		t.Fatalf("surviving source must still merge: %+v", report)
	}
}

func TestRun_ZeroNewIsSuccess(t *testing.T) {
	st := store.NewRecordStore(logger.NewNopLogger())
	st.UpsertBase(context.Background(), rec("O1"))

	snaps := &fakeSnapshotter{}
	f := &fakeFetcher{shipment: []order.FieldMap{rec("O1")}}
	eng := newTestEngine(f, st, snaps)

	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("zero-new run must complete: %v", err)
	}
	if report.NewRecords != 0 {
		t.Fatalf("report: %+v", report)
	}
	if len(snaps.batches) != 0 {
		t.Fatal("empty batch must not be snapshotted")
	}
}

func TestRun_ArrivalOrderPreserved(t *testing.T) {
	st := store.NewRecordStore(logger.NewNopLogger())
	snaps := &fakeSnapshotter{}
	f := &fakeFetcher{
		shipment:   []order.FieldMap{rec("S1"), rec("S2")},
		retransfer: []order.FieldMap{rec("R1")},
	}
	eng := newTestEngine(f, st, snaps)

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// 发货结果在前，再转移结果在后
	batch := snaps.batches[0]
	want := []string{"S1", "S2", "R1"}
	if len(batch) != 3 {
		t.Fatalf("batch size: %d", len(batch))
	}
	for i, id := range want {
		if batch[i][order.FieldOrderID] != id {
			t.Fatalf("batch order broken at %d: %v", i, batch)
		}
	}
}

func TestRun_EnrichmentMergesAndSkipsFailures(t *testing.T) {
	st := store.NewRecordStore(logger.NewNopLogger())
	f := &fakeFetcher{
		shipment: []order.FieldMap{rec("O1"), rec("O2"), rec("O3")},
		details: map[string]order.FieldMap{
			"O1": {order.FieldOrderToken: "T1"},
			"O3": {order.FieldOrderToken: "T3"},
		},
		detailErr: map[string]error{"O2": errors.New("detail 500")},
	}
	eng := newTestEngine(f, st, &fakeSnapshotter{})

	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Enriched != 2 || report.EnrichFailed != 1 {
		t.Fatalf("enrichment report: %+v", report)
	}

	// O2 失败被跳过，O3 仍要富集成功
	eff, _ := st.Effective("O3")
	if eff[order.FieldOrderToken] != "T3" {
		t.Fatalf("later order must still be enriched after a failure: %v", eff)
	}
	if st.Enriched("O2") {
		t.Fatal("failed enrichment must not create an overlay")
	}
}

func TestRun_SyncCompleteSignaledOnce(t *testing.T) {
	st := store.NewRecordStore(logger.NewNopLogger())
	ch, cancel := st.Subscribe()
	defer cancel()

	f := &fakeFetcher{shipment: []order.FieldMap{rec("O1"), rec("O2")}}
	eng := newTestEngine(f, st, &fakeSnapshotter{})
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	completes := 0
	for drained := false; !drained; {
		select {
		case n := <-ch:
			if n.Type == store.NotifySyncComplete {
				completes++
			}
		default:
			drained = true
		}
	}
	if completes != 1 {
		t.Fatalf("want exactly 1 sync_complete, got %d", completes)
	}
}

func TestStartAsync_RejectsConcurrentRun(t *testing.T) {
	st := store.NewRecordStore(logger.NewNopLogger())
	f := &fakeFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := newTestEngine(f, st, &fakeSnapshotter{})

	runID, err := eng.StartAsync()
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if runID == "" {
		t.Fatal("run id must be returned")
	}
	<-f.started

	// 批次还在跑：同步/异步触发都必须被拒绝
	if _, err := eng.StartAsync(); !errors.Is(err, ErrRunInFlight) {
		t.Fatalf("want ErrRunInFlight, got %v", err)
	}
	if _, err := eng.Run(context.Background()); !errors.Is(err, ErrRunInFlight) {
		t.Fatalf("want ErrRunInFlight from Run, got %v", err)
	}

	close(f.release)

	// 批次跑完后可再次触发
	deadline := time.After(2 * time.Second)
	for {
		if _, err := eng.StartAsync(); err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("engine never became idle after run completion")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStatus_ReportsPhases(t *testing.T) {
	st := store.NewRecordStore(logger.NewNopLogger())
	f := &fakeFetcher{
		shipment: []order.FieldMap{rec("O1")},
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	eng := newTestEngine(f, st, &fakeSnapshotter{})

	if got := eng.Status(); got.Phase != PhaseIdle {
		t.Fatalf("initial phase: %+v", got)
	}

	runID, err := eng.StartAsync()
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-f.started

	if got := eng.Status(); got.Phase != PhaseFetching || got.RunID != runID {
		t.Fatalf("in-flight status: %+v", got)
	}

	close(f.release)
	deadline := time.After(2 * time.Second)
	for {
		got := eng.Status()
		if got.Phase == PhaseIdle && got.LastReport != nil {
			if got.LastReport.RunID != runID || got.LastReport.NewRecords != 1 {
				t.Fatalf("last report: %+v", got.LastReport)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("run never finished, status: %+v", got)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
