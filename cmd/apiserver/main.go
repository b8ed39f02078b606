package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vividsync/internal/engine"
	"vividsync/internal/metrics"
	"vividsync/internal/server/handlers/audit"
	"vividsync/internal/server/handlers/events"
	"vividsync/internal/server/handlers/order"
	synchandler "vividsync/internal/server/handlers/sync"
	"vividsync/internal/server/routers"
	"vividsync/internal/snapshot"
	"vividsync/internal/store"
	"vividsync/internal/transfer"
	"vividsync/internal/vivid"
	"vividsync/pkg/config"
	"vividsync/pkg/infra/mysql"
	redisinfra "vividsync/pkg/infra/redis"
	"vividsync/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/apiserver.yaml", "配置文件路径")
)

func main() {
	flag.Parse()

	log.Println("========================================")
	log.Println("  VIVIDSYNC API Server Starting...")
	log.Println("========================================")

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 凭证缺失在这里失败，不允许进入任何同步流程
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	log.Printf("Config loaded: %s, env: %s, log_level: %s\n", cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	// 3. 记录库 + 快照还原（接流量之前先回放历史批次）
	recordStore := store.NewRecordStore(zapLogger)
	snapshots := snapshot.NewAdapter(cfg.Snapshot.Dir, cfg.Snapshot.EnrichedMinFields, zapLogger)
	restore := snapshots.Restore(ctx, recordStore)
	log.Printf("Snapshot restore: %d records (%d enriched) from %d files\n",
		restore.Records, restore.Enriched, restore.FilesRead)

	// 4. 远端客户端 + 指标 + 引擎
	client := vivid.NewClient(cfg.Vivid.BaseURL, cfg.Vivid.APIToken,
		cfg.Vivid.Timeout, cfg.Vivid.DetailTimeout, zapLogger)
	reg := metrics.NewRegistry()
	reg.StoreSize.Set(float64(recordStore.Len()))
	eng := engine.NewEngine(client, recordStore, snapshots, reg, zapLogger)

	// 5. 可选依赖：转移审计 DAO（MySQL）
	var auditDAO *mysql.TransferAuditDAO
	if cfg.MySQL.DSN != "" {
		auditDAO, err = mysql.NewTransferAuditDAO(cfg.MySQL.DSN)
		if err != nil {
			log.Fatalf("Failed to create transfer audit DAO: %v", err)
		}
		defer auditDAO.Close()
		log.Println("Transfer audit storage enabled")
	}

	var auditSink transfer.AuditSink
	if auditDAO != nil {
		auditSink = auditDAO
	}
	executor := transfer.NewExecutor(client, recordStore, auditSink, reg, cfg.Transfer.Source, zapLogger)

	// 6. 可选依赖：Redis 事件转发
	if cfg.Redis.Addr != "" {
		pubsub, err := redisinfra.NewPubSub(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, zapLogger)
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}
		defer pubsub.Close()

		notifications, cancelSub := recordStore.Subscribe()
		defer cancelSub()
		go pubsub.Relay(ctx, notifications)
		log.Printf("Redis event relay enabled on channel: %s\n", cfg.Redis.Channel)
	}

	// 7. 组装路由并启动 HTTP 服务
	router := routers.SetupRoutes(
		order.NewOrderHandler(recordStore, executor, zapLogger),
		synchandler.NewSyncHandler(eng, zapLogger),
		audit.NewAuditHandler(auditDAO, zapLogger),
		events.NewEventsHandler(recordStore, zapLogger),
		reg,
		zapLogger,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	log.Printf("Server started on :%s. Press Ctrl+C to shutdown.\n", cfg.Server.Port)

	// 8. 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Println("========================================")
	log.Printf("  Received signal: %v\n", sig)
	log.Println("  Shutting down Server...")
	log.Println("========================================")

	// 9. 优雅关闭：在跑的同步批次自己会跑完，这里只停 HTTP 入口
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v\n", err)
	}

	fmt.Println("========================================")
	fmt.Println("  Server exited gracefully")
	fmt.Println("========================================")
}
