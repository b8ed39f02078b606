package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"vividsync/internal/transfer"
)

// TransferAttempt 转移尝试审计实体
type TransferAttempt struct {
	ID      string `gorm:"column:id;primaryKey;type:varchar(64)"`
	OrderID string `gorm:"column:order_id;type:varchar(64);not null;index:idx_order_id"`

	// 结果三态与远端消息
	Outcome string `gorm:"column:outcome;type:varchar(16);not null;index:idx_outcome"`
	Message string `gorm:"column:message;type:varchar(512)"`

	// 提交的转移 URL 列表与执行时刻的生效字段
	URLs    datatypes.JSON `gorm:"column:urls;type:json"`
	Payload datatypes.JSON `gorm:"column:payload;type:json"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_created_at"`
}

// TableName 指定表名
func (TransferAttempt) TableName() string {
	return "transfer_attempts"
}

// TransferAuditDAO 转移审计数据访问对象
type TransferAuditDAO struct {
	db *gorm.DB
}

// NewTransferAuditDAO 创建 DAO 并建表
func NewTransferAuditDAO(dsn string) (*TransferAuditDAO, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&TransferAttempt{}); err != nil {
		return nil, fmt.Errorf("failed to migrate transfer_attempts: %w", err)
	}

	return &TransferAuditDAO{db: db}, nil
}

// RecordTransfer 落一条转移尝试（实现 transfer.AuditSink）
func (dao *TransferAuditDAO) RecordTransfer(ctx context.Context, rec transfer.AuditRecord) error {
	urlsJSON, err := json.Marshal(rec.URLs)
	if err != nil {
		return fmt.Errorf("failed to marshal urls: %w", err)
	}
	payloadJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	attempt := TransferAttempt{
		ID:        uuid.New().String(),
		OrderID:   rec.OrderID,
		Outcome:   rec.Outcome,
		Message:   rec.Message,
		URLs:      urlsJSON,
		Payload:   payloadJSON,
		CreatedAt: time.Now(),
	}

	if err := dao.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		return fmt.Errorf("failed to insert transfer attempt: %w", err)
	}
	return nil
}

// Recent 最近的转移尝试，按时间倒序
func (dao *TransferAuditDAO) Recent(ctx context.Context, limit int) ([]TransferAttempt, error) {
	if limit <= 0 {
		limit = 20
	}

	var attempts []TransferAttempt
	result := dao.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query transfer attempts: %w", result.Error)
	}
	return attempts, nil
}

// Close 关闭数据库连接
func (dao *TransferAuditDAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
