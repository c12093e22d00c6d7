package inventory

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher publishes events as structured log entries
// イベントを構造化ログとして出力する発行者
type LogPublisher struct {
	logger *zap.Logger
}

var _ EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a new log publisher
// 新しいログ発行者を作成
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error {
	p.logger.Info("run.completed",
		zap.String("run_id", event.RunID),
		zap.String("tenant_id", event.TenantID),
		zap.String("store_id", event.StoreID),
		zap.Time("business_date", event.BusinessDate),
		zap.Int("line_count", event.LineCount),
		zap.Float64("total_theoretical_cost", event.TotalTheoreticalCost),
	)
	return nil
}

func (p *LogPublisher) PublishRunFailed(ctx context.Context, event RunFailedEvent) error {
	p.logger.Warn("run.failed",
		zap.String("run_id", event.RunID),
		zap.String("tenant_id", event.TenantID),
		zap.String("store_id", event.StoreID),
		zap.String("error", event.Error),
	)
	return nil
}

func (p *LogPublisher) PublishVendorItemLinked(ctx context.Context, event VendorItemLinkedEvent) error {
	p.logger.Info("vendor_item.linked",
		zap.String("tenant_id", event.TenantID),
		zap.String("vendor_id", event.VendorID),
		zap.String("vendor_sku", event.VendorSKU),
		zap.String("inventory_item_id", event.InventoryItemID),
		zap.String("confidence", string(event.Confidence)),
		zap.Bool("created", event.Created),
	)
	return nil
}
