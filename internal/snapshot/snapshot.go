package snapshot

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"vividsync/internal/domains/order"
	"vividsync/internal/store"
	"vividsync/pkg/errorutil"
	"vividsync/pkg/logger"
)

// filePrefix 批次快照文件名前缀
const filePrefix = "Vivid_Batch_"

// fileTimeLayout 文件名里的批次时间戳格式
const fileTimeLayout = "20060102_150405"

// RestoreReport 启动还原统计
type RestoreReport struct {
	FilesRead    int // 成功读取的快照文件数
	FilesSkipped int // 读取/解析失败被跳过的文件数
	Records      int // 还原的新记录数
	Enriched     int // 按字段数阈值直接判定为已富集的记录数
}

// Adapter 快照适配器：每个同步批次落一个 CSV 文件，启动时全量回放。
// 旧文件只增不改。
type Adapter struct {
	dir               string
	enrichedMinFields int // 非空字段数达到阈值视为"已富集"，跳过冗余详情拉取
	logger            logger.Logger
}

// NewAdapter 创建快照适配器
func NewAdapter(dir string, enrichedMinFields int, log logger.Logger) *Adapter {
	return &Adapter{
		dir:               dir,
		enrichedMinFields: enrichedMinFields,
		logger:            log,
	}
}

// WriteBatch 把一个批次的新增记录写成一个时间戳命名的快照文件。
// 表头取批次内字段名并集，缺失列留空。空批次不落盘。
func (a *Adapter) WriteBatch(ctx context.Context, records []order.FieldMap) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", errorutil.Persistence("create snapshot dir failed", err)
	}

	// 字段名并集作表头，排序保证列序稳定
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(seen))
	for k := range seen {
		header = append(header, k)
	}
	sort.Strings(header)

	path := filepath.Join(a.dir, fmt.Sprintf("%s%s.csv", filePrefix, time.Now().Format(fileTimeLayout)))
	f, err := os.Create(path)
	if err != nil {
		return "", errorutil.Persistence("create snapshot file failed", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", errorutil.Persistence("write snapshot header failed", err)
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			row[i] = rec[col]
		}
		if err := w.Write(row); err != nil {
			return "", errorutil.Persistence("write snapshot row failed", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errorutil.Persistence("flush snapshot failed", err)
	}

	a.logger.Infof(ctx, "[Snapshot] wrote %d records to %s", len(records), path)
	return path, nil
}

// Restore 回放快照目录下全部 CSV。坏文件跳过不致命；
// 已在库里的 orderId 不覆盖（首写者胜）。
func (a *Adapter) Restore(ctx context.Context, st *store.RecordStore) RestoreReport {
	var report RestoreReport

	paths, err := filepath.Glob(filepath.Join(a.dir, "*.csv"))
	if err != nil {
		a.logger.Errorf(ctx, "[Snapshot] glob failed: %v", err)
		return report
	}
	sort.Strings(paths)

	for _, path := range paths {
		records, err := a.readFile(path)
		if err != nil {
			report.FilesSkipped++
			a.logger.Warnf(ctx, "[Snapshot] skipping unreadable file %s: %v", path, err)
			continue
		}
		report.FilesRead++

		for _, rec := range records {
			if rec[order.FieldOrderID] == "" {
				continue
			}
			if !st.UpsertBase(ctx, rec) {
				continue
			}
			report.Records++
			// 宽行视为落盘前就带了详情，直接入覆盖层，避免重复富集
			if rec.NonEmptyCount() >= a.enrichedMinFields {
				st.MergeOverlay(ctx, rec[order.FieldOrderID], rec)
				report.Enriched++
			}
		}
	}

	a.logger.Infof(ctx, "[Snapshot] restore complete: %d records (%d enriched) from %d files, %d skipped",
		report.Records, report.Enriched, report.FilesRead, report.FilesSkipped)
	return report
}

// readFile 读取单个快照文件为字段表序列
func (a *Adapter) readFile(path string) ([]order.FieldMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // 容忍行宽不一致，缺列按空值处理

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	records := make([]order.FieldMap, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(order.FieldMap, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
