// Package events delivers costing events to external subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory"
)

// イベント種別
const (
	TypeRunCompleted     = "run.completed"
	TypeRunFailed        = "run.failed"
	TypeVendorItemLinked = "vendor_item.linked"
)

// Envelope wraps an event payload with its type
// イベント種別とペイロードをまとめた配信形式
type Envelope struct {
	Type     string          `json:"type"`
	TenantID string          `json:"tenant_id"`
	Payload  json.RawMessage `json:"payload"`
}

// RedisPublisher publishes events on Redis pub/sub channels
// Redis pub/sub チャネルへイベントを発行する
type RedisPublisher struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

var _ inventory.EventPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to Redis and verifies the connection
// Redisへ接続し疎通を確認する
func NewRedisPublisher(ctx context.Context, url, prefix string, logger *zap.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("Redis URLの解析に失敗しました: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
	}
	return NewRedisPublisherFromClient(client, prefix, logger), nil
}

// NewRedisPublisherFromClient wraps an existing client
// 既存クライアントから発行者を作成
func NewRedisPublisherFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "kitchencost"
	}
	return &RedisPublisher{client: client, prefix: prefix, logger: logger.Named("events")}
}

func (p *RedisPublisher) PublishRunCompleted(ctx context.Context, event inventory.RunCompletedEvent) error {
	return p.publish(ctx, TypeRunCompleted, event.TenantID, event)
}

func (p *RedisPublisher) PublishRunFailed(ctx context.Context, event inventory.RunFailedEvent) error {
	return p.publish(ctx, TypeRunFailed, event.TenantID, event)
}

func (p *RedisPublisher) PublishVendorItemLinked(ctx context.Context, event inventory.VendorItemLinkedEvent) error {
	return p.publish(ctx, TypeVendorItemLinked, event.TenantID, event)
}

// Close releases the Redis connection
// Redis接続を閉じる
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) publish(ctx context.Context, eventType, tenantID string, payload interface{}) error {
	body, err := encode(eventType, tenantID, payload)
	if err != nil {
		return err
	}
	channel := Channel(p.prefix, eventType)
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		p.logger.Error("イベント発行に失敗しました",
			zap.String("channel", channel),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return fmt.Errorf("イベント発行に失敗しました: %w", err)
	}
	p.logger.Debug("イベントを発行しました", zap.String("channel", channel))
	return nil
}

// Channel returns the pub/sub channel for an event type
// イベント種別に対応するチャネル名
func Channel(prefix, eventType string) string {
	return prefix + ":" + eventType
}

func encode(eventType, tenantID string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("イベントのエンコードに失敗しました: %w", err)
	}
	return json.Marshal(Envelope{Type: eventType, TenantID: tenantID, Payload: raw})
}
