package snapshot

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"vividsync/internal/domains/order"
	"vividsync/internal/store"
	"vividsync/pkg/logger"
)

func newTestAdapter(t *testing.T, threshold int) (*Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	return NewAdapter(dir, threshold, logger.NewNopLogger()), dir
}

func TestWriteBatch_RoundTrip(t *testing.T) {
	adapter, _ := newTestAdapter(t, 10)
	ctx := context.Background()

	batch := []order.FieldMap{
		{order.FieldOrderID: "O1", order.FieldEvent: "Concert A", order.FieldQuantity: "2"},
		{order.FieldOrderID: "O2", order.FieldStatus: "PENDING_SHIPMENT"},
	}

	path, err := adapter.WriteBatch(ctx, batch)
	if err != nil {
		t.Fatalf("WriteBatch error: %v", err)
	}
	if path == "" {
		t.Fatal("non-empty batch must produce a file")
	}

	// 新进程视角：全新记录库从快照还原
	fresh := store.NewRecordStore(logger.NewNopLogger())
	report := adapter.Restore(ctx, fresh)

	if report.Records != 2 || report.FilesRead != 1 {
		t.Fatalf("restore report: %+v", report)
	}
	eff, ok := fresh.Effective("O1")
	if !ok {
		t.Fatal("O1 missing after restore")
	}
	if eff[order.FieldEvent] != "Concert A" || eff[order.FieldQuantity] != "2" {
		t.Fatalf("field values lost in round trip: %v", eff)
	}
	// O2 没有 event 列：写成空白，读回为空串
	eff2, _ := fresh.Effective("O2")
	if eff2[order.FieldEvent] != "" {
		t.Fatalf("missing column must round-trip as blank: %v", eff2)
	}
}

func TestWriteBatch_EmptyBatchNoFile(t *testing.T) {
	adapter, dir := newTestAdapter(t, 10)

	path, err := adapter.WriteBatch(context.Background(), nil)
	if err != nil || path != "" {
		t.Fatalf("empty batch: path=%q err=%v", path, err)
	}
	entries, _ := filepath.Glob(filepath.Join(dir, "*.csv"))
	if len(entries) != 0 {
		t.Fatalf("no file expected, found %v", entries)
	}
}

func TestRestore_SkipsBadFiles(t *testing.T) {
	adapter, dir := newTestAdapter(t, 10)
	ctx := context.Background()

	// 一个正常文件 + 一个非法 CSV
	if _, err := adapter.WriteBatch(ctx, []order.FieldMap{{order.FieldOrderID: "O1"}}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	bad := filepath.Join(dir, "broken.csv")
	if err := os.WriteFile(bad, []byte("\"unterminated\nquote,,,"), 0o644); err != nil {
		t.Fatalf("write bad file: %v", err)
	}

	st := store.NewRecordStore(logger.NewNopLogger())
	report := adapter.Restore(ctx, st)

	if report.FilesSkipped != 1 {
		t.Fatalf("bad file must be skipped, report: %+v", report)
	}
	if report.Records != 1 {
		t.Fatalf("good file must still load, report: %+v", report)
	}
}

func TestRestore_EnrichedThreshold(t *testing.T) {
	adapter, dir := newTestAdapter(t, 4)
	ctx := context.Background()

	// 宽行（4 个非空字段）判定为已富集，窄行不判定
	writeCSV(t, filepath.Join(dir, "Vivid_Batch_20260801_000000.csv"),
		[][]string{
			{"orderId", "event", "orderToken", "status"},
			{"W1", "Show", "TOK", "SHIPPED"},
			{"N1", "Show", "", ""},
		})

	st := store.NewRecordStore(logger.NewNopLogger())
	report := adapter.Restore(ctx, st)

	if report.Records != 2 || report.Enriched != 1 {
		t.Fatalf("report: %+v", report)
	}
	if !st.Enriched("W1") {
		t.Fatal("wide row must seed overlay")
	}
	if st.Enriched("N1") {
		t.Fatal("narrow row must not seed overlay")
	}
}

func TestRestore_FirstWriterWins(t *testing.T) {
	adapter, dir := newTestAdapter(t, 10)
	ctx := context.Background()

	writeCSV(t, filepath.Join(dir, "a.csv"), [][]string{{"orderId", "status"}, {"O1", "OLD"}})
	writeCSV(t, filepath.Join(dir, "b.csv"), [][]string{{"orderId", "status"}, {"O1", "NEW"}})

	st := store.NewRecordStore(logger.NewNopLogger())
	report := adapter.Restore(ctx, st)

	if report.Records != 1 {
		t.Fatalf("duplicate orderId across files must load once, report: %+v", report)
	}
	eff, _ := st.Effective("O1")
	if eff["status"] != "OLD" {
		t.Fatalf("first file wins (lexical order), got %q", eff["status"])
	}
}

func writeCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
