package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vividsync/internal/store"
	"vividsync/pkg/logger"
)

// PubSub Redis 发布客户端：把记录库的变更通知镜像到一个频道，
// 外部视图订阅该频道即可增量刷新，不必轮询
type PubSub struct {
	client  *redis.Client
	channel string
	logger  logger.Logger
}

// NewPubSub 创建 PubSub 实例
func NewPubSub(addr, password string, db int, channel string, log logger.Logger) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &PubSub{
		client:  client,
		channel: channel,
		logger:  log,
	}, nil
}

// Relay 把订阅通道里的通知逐条发布到 Redis，通道关闭即返回。
// 发布失败只告警：通知丢失不影响引擎本身。
func (p *PubSub) Relay(ctx context.Context, notifications <-chan store.Notification) {
	for n := range notifications {
		if err := p.publish(ctx, n); err != nil {
			p.logger.Warnf(ctx, "[RedisPubSub] publish %s failed: %v", n.Type, err)
		}
	}
	p.logger.Infof(ctx, "[RedisPubSub] relay stopped")
}

// publish 序列化并发布单条通知
func (p *PubSub) publish(ctx context.Context, n store.Notification) error {
	msgJSON, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Subscribe 订阅频道（测试用）
func (p *PubSub) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, p.channel)
}

// Close 关闭 Redis 连接
func (p *PubSub) Close() error {
	return p.client.Close()
}
