package inventory

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Order guide line outcomes
// 発注ガイド行の処理結果
const (
	OutcomeLinked  = "linked"  // 既存品目に紐付け
	OutcomeReview  = "review"  // 要確認
	OutcomeCreated = "created" // 新規品目を作成
	OutcomeError   = "error"   // エラー
)

// OrderGuideLine is the decision taken for one vendor product
// 仕入先商品1件に対する処理結果
type OrderGuideLine struct {
	Product         VendorProduct `json:"product"`
	Match           MatchResult   `json:"match"`
	Outcome         string        `json:"outcome"`
	InventoryItemID string        `json:"inventory_item_id,omitempty"`
	VendorItemID    string        `json:"vendor_item_id,omitempty"`
}

// OrderGuideError records a product that could not be processed
// 処理できなかった仕入先商品
type OrderGuideError struct {
	VendorSKU string `json:"vendor_sku"`
	Message   string `json:"message"`
}

// OrderGuideSummary is the result of processing an order guide
// 発注ガイド処理結果のサマリー
type OrderGuideSummary struct {
	TenantID string            `json:"tenant_id"`
	VendorID string            `json:"vendor_id"`
	Linked   []OrderGuideLine  `json:"linked"`
	Review   []OrderGuideLine  `json:"review"`
	Created  []OrderGuideLine  `json:"created"`
	Errors   []OrderGuideError `json:"errors"`
}

type orderGuideStore interface {
	CatalogWriter
	Transactor
	GetUnits(ctx context.Context) ([]Unit, error)
}

// OrderGuideProcessor links, queues or creates catalog entries for vendor products
// 仕入先商品を紐付け・要確認・新規作成に振り分ける
type OrderGuideProcessor struct {
	matcher   *ItemMatcher
	store     orderGuideStore
	publisher EventPublisher
	logger    *zap.Logger
	metrics   *Metrics
	now       func() time.Time
}

// NewOrderGuideProcessor creates a new processor
// 新しい発注ガイドプロセッサーを作成
func NewOrderGuideProcessor(matcher *ItemMatcher, store orderGuideStore, publisher EventPublisher, logger *zap.Logger, metrics *Metrics) *OrderGuideProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderGuideProcessor{
		matcher:   matcher,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Process matches products once and applies one decision per product.
// A failure on one product is recorded and does not stop the others.
// 一括照合後、商品ごとに処理（1件の失敗は他に影響しない）
func (p *OrderGuideProcessor) Process(ctx context.Context, tenantID, vendorID string, products []VendorProduct) (*OrderGuideSummary, error) {
	if err := ValidateID("tenant_id", tenantID); err != nil {
		return nil, err
	}
	if err := ValidateID("vendor_id", vendorID); err != nil {
		return nil, err
	}

	summary := &OrderGuideSummary{
		TenantID: tenantID,
		VendorID: vendorID,
		Linked:   []OrderGuideLine{},
		Review:   []OrderGuideLine{},
		Created:  []OrderGuideLine{},
		Errors:   []OrderGuideError{},
	}

	seen := make(map[string]bool, len(products))
	valid := make([]VendorProduct, 0, len(products))
	for _, product := range products {
		if err := ValidateVendorProduct(product); err != nil {
			summary.addError(product.VendorSKU, err, p.metrics)
			continue
		}
		if seen[product.VendorSKU] {
			summary.addError(product.VendorSKU, NewValidationError("vendor_sku", "発注ガイド内で仕入先SKUが重複しています", product.VendorSKU), p.metrics)
			continue
		}
		seen[product.VendorSKU] = true
		valid = append(valid, product)
	}

	matches, err := p.matcher.BatchMatch(ctx, valid, tenantID)
	if err != nil {
		return nil, err
	}

	var units *unitIndex
	for _, product := range valid {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		match := matches[product.VendorSKU]
		line := OrderGuideLine{Product: product, Match: match}

		switch match.Confidence {
		case ConfidenceHigh:
			vi := p.vendorItem(tenantID, vendorID, *match.InventoryItemID, product)
			if err := p.store.CreateVendorItem(ctx, vi); err != nil {
				summary.addError(product.VendorSKU, NewStorageError("create_vendor_item", "仕入先品目の作成に失敗しました", err), p.metrics)
				continue
			}
			line.Outcome = OutcomeLinked
			line.InventoryItemID = vi.InventoryItemID
			line.VendorItemID = vi.ID
			summary.Linked = append(summary.Linked, line)
			p.publishLinked(ctx, tenantID, vendorID, line, false)

		case ConfidenceMedium, ConfidenceLow:
			line.Outcome = OutcomeReview
			summary.Review = append(summary.Review, line)

		default:
			if units == nil {
				list, err := p.store.GetUnits(ctx)
				if err != nil {
					return nil, NewStorageError("get_units", "単位の取得に失敗しました", err)
				}
				units = newUnitIndex(list)
			}
			item := p.inventoryItem(tenantID, product, units)
			if err := ValidateInventoryItem(item); err != nil {
				summary.addError(product.VendorSKU, err, p.metrics)
				continue
			}
			vi := p.vendorItem(tenantID, vendorID, item.ID, product)
			// 品目と仕入先品目は同一トランザクションで作成する
			err := p.store.WithinTx(ctx, func(tx TxStore) error {
				if err := tx.CreateInventoryItem(ctx, item); err != nil {
					return NewStorageError("create_inventory_item", "在庫品目の作成に失敗しました", err)
				}
				if err := tx.CreateVendorItem(ctx, vi); err != nil {
					return NewStorageError("create_vendor_item", "仕入先品目の作成に失敗しました", err)
				}
				return nil
			})
			if err != nil {
				summary.addError(product.VendorSKU, err, p.metrics)
				continue
			}
			line.Outcome = OutcomeCreated
			line.InventoryItemID = item.ID
			line.VendorItemID = vi.ID
			summary.Created = append(summary.Created, line)
			p.publishLinked(ctx, tenantID, vendorID, line, true)
		}
		p.metrics.orderGuideLine(line.Outcome)
	}

	p.logger.Info("発注ガイド処理完了",
		zap.String("tenant_id", tenantID),
		zap.String("vendor_id", vendorID),
		zap.Int("linked", len(summary.Linked)),
		zap.Int("review", len(summary.Review)),
		zap.Int("created", len(summary.Created)),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (p *OrderGuideProcessor) vendorItem(tenantID, vendorID, itemID string, product VendorProduct) *VendorItem {
	return &VendorItem{
		ID:              NewID(),
		TenantID:        tenantID,
		VendorID:        vendorID,
		VendorSKU:       product.VendorSKU,
		InventoryItemID: itemID,
		Name:            product.Name,
		CaseSize:        product.CaseSize,
		Unit:            product.Unit,
		Price:           product.Price,
		CreatedAt:       p.now(),
	}
}

// inventoryItem builds a catalog item for an unmatched product. The per-unit price
// is the case price split over the case size. A unit label that names no known
// unit leaves the base unit empty.
func (p *OrderGuideProcessor) inventoryItem(tenantID string, product VendorProduct, units *unitIndex) *InventoryItem {
	price := product.Price
	if product.CaseSize > 0 {
		price = product.Price / product.CaseSize
	}
	baseUnit, ok := units.resolve(product.Unit)
	if !ok && product.Unit != "" {
		p.logger.Warn("仕入先の単位が単位マスタに存在しないため基本単位を未設定にします",
			zap.String("tenant_id", tenantID),
			zap.String("vendor_sku", product.VendorSKU),
			zap.String("unit", product.Unit),
		)
	}
	now := p.now()
	return &InventoryItem{
		ID:           NewID(),
		TenantID:     tenantID,
		Name:         product.Name,
		SKU:          product.VendorSKU,
		CategoryName: product.CategoryCode,
		BaseUnitID:   baseUnit,
		PricePerUnit: price,
		YieldPercent: 100,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (p *OrderGuideProcessor) publishLinked(ctx context.Context, tenantID, vendorID string, line OrderGuideLine, created bool) {
	if p.publisher == nil {
		return
	}
	event := VendorItemLinkedEvent{
		TenantID:        tenantID,
		VendorID:        vendorID,
		VendorSKU:       line.Product.VendorSKU,
		InventoryItemID: line.InventoryItemID,
		Confidence:      line.Match.Confidence,
		Created:         created,
		Timestamp:       p.now(),
	}
	if err := p.publisher.PublishVendorItemLinked(ctx, event); err != nil {
		p.logger.Error("イベント発行に失敗しました", zap.Error(err))
	}
}

func (s *OrderGuideSummary) addError(sku string, err error, metrics *Metrics) {
	s.Errors = append(s.Errors, OrderGuideError{VendorSKU: sku, Message: err.Error()})
	metrics.orderGuideLine(OutcomeError)
}

// unitIndex resolves free-text unit labels by id, name or abbreviation, ignoring case
type unitIndex struct {
	byLabel map[string]string
}

func newUnitIndex(units []Unit) *unitIndex {
	idx := &unitIndex{byLabel: make(map[string]string, len(units)*3)}
	// IDの一致を名称・略称より優先する
	for _, u := range units {
		for _, label := range []string{u.Abbreviation, u.Name} {
			if key := strings.ToLower(strings.TrimSpace(label)); key != "" {
				idx.byLabel[key] = u.ID
			}
		}
	}
	for _, u := range units {
		idx.byLabel[strings.ToLower(u.ID)] = u.ID
	}
	return idx
}

func (idx *unitIndex) resolve(label string) (string, bool) {
	id, ok := idx.byLabel[strings.ToLower(strings.TrimSpace(label))]
	return id, ok
}
