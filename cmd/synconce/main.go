package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"vividsync/internal/engine"
	"vividsync/internal/metrics"
	"vividsync/internal/snapshot"
	"vividsync/internal/store"
	"vividsync/internal/vivid"
	"vividsync/pkg/config"
	"vividsync/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/apiserver.yaml", "配置文件路径")
)

// 一次性同步工具：回放快照、跑一个批次、退出。适合 cron 调度。
func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	recordStore := store.NewRecordStore(zapLogger)
	snapshots := snapshot.NewAdapter(cfg.Snapshot.Dir, cfg.Snapshot.EnrichedMinFields, zapLogger)
	restore := snapshots.Restore(ctx, recordStore)

	client := vivid.NewClient(cfg.Vivid.BaseURL, cfg.Vivid.APIToken,
		cfg.Vivid.Timeout, cfg.Vivid.DetailTimeout, zapLogger)
	eng := engine.NewEngine(client, recordStore, snapshots, metrics.NewRegistry(), zapLogger)

	report, err := eng.Run(ctx)
	if err != nil {
		log.Fatalf("Sync run failed: %v", err)
	}

	fmt.Printf("restored=%d fetched=%d new=%d enriched=%d failed=%d duration=%s\n",
		restore.Records, report.Fetched, report.NewRecords,
		report.Enriched, report.EnrichFailed, report.Duration)

	if report.SnapshotPath != "" {
		fmt.Printf("snapshot=%s\n", report.SnapshotPath)
	}

	os.Exit(0)
}
