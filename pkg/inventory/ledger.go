package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// openEnd is the upper bound used for windows that run up to "now and later"
var openEnd = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// WasteExpander turns finished-recipe waste into ingredient quantities.
// *ExplosionEngine satisfies it.
// 完成品の廃棄を原材料数量に展開する
type WasteExpander interface {
	ExplodeBatch(ctx context.Context, sales []MenuItemSale, tenantID string) ([]*Explosion, []MenuItemSale, error)
}

type ledgerSource interface {
	LedgerStore
	CatalogStore
}

// LedgerReconciler derives actual usage and estimated on-hand from ledger records
// 台帳記録から実使用量と推定在庫を算出
type LedgerReconciler struct {
	store    ledgerSource
	expander WasteExpander
	logger   *zap.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewLedgerReconciler creates a new reconciler; expander may be nil
// 新しい台帳照合器を作成（expander は nil 可）
func NewLedgerReconciler(store ledgerSource, expander WasteExpander, logger *zap.Logger, metrics *Metrics) *LedgerReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerReconciler{
		store:    store,
		expander: expander,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// ownedStore reports whether storeID exists and belongs to tenantID
func (r *LedgerReconciler) ownedStore(ctx context.Context, tenantID, storeID string) (bool, error) {
	store, err := r.store.GetStore(ctx, storeID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, NewStorageError("get_store", "店舗取得に失敗しました", err)
	}
	return store != nil && store.TenantID == tenantID, nil
}

// ownedCount loads a count and reports whether it belongs to tenantID and storeID
func (r *LedgerReconciler) ownedCount(ctx context.Context, tenantID, storeID, countID string) (*InventoryCount, error) {
	count, err := r.store.GetInventoryCount(ctx, countID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, NewStorageError("get_inventory_count", "棚卸記録の取得に失敗しました", err)
	}
	if count == nil || count.TenantID != tenantID || count.StoreID != storeID {
		return nil, nil
	}
	return count, nil
}

// countQuantities sums count lines per item, keeping first-seen order
func (r *LedgerReconciler) countQuantities(ctx context.Context, countID string, order *itemOrder) (map[string]float64, error) {
	lines, err := r.store.GetInventoryCountLines(ctx, countID)
	if err != nil {
		return nil, NewStorageError("get_inventory_count_lines", "棚卸明細の取得に失敗しました", err)
	}
	qty := make(map[string]float64)
	for _, l := range lines {
		if l.CountID != countID {
			continue
		}
		qty[l.InventoryItemID] += l.Quantity
		order.add(l.InventoryItemID)
	}
	return qty, nil
}

func (r *LedgerReconciler) catalog(ctx context.Context, tenantID string) (map[string]InventoryItem, error) {
	items, err := r.store.GetInventoryItems(ctx, tenantID)
	if err != nil {
		return nil, NewStorageError("get_inventory_items", "在庫品目一覧の取得に失敗しました", err)
	}
	out := make(map[string]InventoryItem, len(items))
	for _, it := range items {
		if it.TenantID == tenantID {
			out[it.ID] = it
		}
	}
	return out, nil
}

// UsageBetweenCounts computes per-item usage between two counts of a store:
// usage = (previous + received - transferred out) - current. Negative usage is
// flagged, never clamped. Ownership mismatches yield an empty result.
// 2回の棚卸間の品目別実使用量を算出
func (r *LedgerReconciler) UsageBetweenCounts(ctx context.Context, tenantID, storeID, previousCountID, currentCountID string) ([]UsageRow, error) {
	logger := r.logger.With(zap.String("tenant_id", tenantID), zap.String("store_id", storeID))

	owned, err := r.ownedStore(ctx, tenantID, storeID)
	if err != nil {
		return nil, err
	}
	if !owned {
		logger.Warn("店舗がテナントに属していません")
		return []UsageRow{}, nil
	}

	prev, err := r.ownedCount(ctx, tenantID, storeID, previousCountID)
	if err != nil {
		return nil, err
	}
	cur, err := r.ownedCount(ctx, tenantID, storeID, currentCountID)
	if err != nil {
		return nil, err
	}
	if prev == nil || cur == nil {
		logger.Warn("棚卸記録が店舗に属していません",
			zap.String("previous_count_id", previousCountID),
			zap.String("current_count_id", currentCountID),
		)
		return []UsageRow{}, nil
	}
	if prev.CountDate.After(cur.CountDate) {
		return nil, NewBusinessRuleError("count_order", "前回棚卸は今回棚卸より前である必要があります", previousCountID+" > "+currentCountID)
	}

	from, to := prev.CountDate, cur.CountDate
	order := &itemOrder{}
	prevQty, err := r.countQuantities(ctx, prev.ID, order)
	if err != nil {
		return nil, err
	}
	curQty, err := r.countQuantities(ctx, cur.ID, order)
	if err != nil {
		return nil, err
	}

	received, err := r.receivedSince(ctx, tenantID, storeID, from, to)
	if err != nil {
		return nil, err
	}
	_, transferredOut, err := r.transfersSince(ctx, tenantID, storeID, from, to)
	if err != nil {
		return nil, err
	}
	items, err := r.catalog(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows := make([]UsageRow, 0, len(order.ids))
	negative := 0
	for _, id := range order.ids {
		item := items[id]
		row := UsageRow{
			InventoryItemID:   id,
			ItemName:          item.Name,
			PreviousQty:       prevQty[id],
			ReceivedQty:       received[id],
			TransferredOutQty: transferredOut[id],
			CurrentQty:        curQty[id],
			UnitCost:          item.PricePerUnit,
		}
		row.Usage = (row.PreviousQty + row.ReceivedQty - row.TransferredOutQty) - row.CurrentQty
		row.IsNegativeUsage = row.Usage < 0
		row.UsageCost = row.Usage * row.UnitCost
		if row.IsNegativeUsage {
			negative++
			r.metrics.negativeUsageRow()
		}
		rows = append(rows, row)
	}

	logger.Info("棚卸間使用量算出完了",
		zap.String("previous_count_id", prev.ID),
		zap.String("current_count_id", cur.ID),
		zap.Int("rows", len(rows)),
		zap.Int("negative_rows", negative),
	)
	return rows, nil
}

// EstimatedOnHand projects on-hand quantities from the latest count:
// count + received + transferred in - waste - theoretical - transferred out.
// Receipts, transfers and waste count from the count date inclusive; theoretical
// usage only strictly after it. Displayed quantities are floored at zero.
// 最新棚卸を起点に推定在庫を算出
func (r *LedgerReconciler) EstimatedOnHand(ctx context.Context, tenantID, storeID string) (*OnHandReport, error) {
	logger := r.logger.With(zap.String("tenant_id", tenantID), zap.String("store_id", storeID))
	report := &OnHandReport{
		TenantID:    tenantID,
		StoreID:     storeID,
		Rows:        []OnHandRow{},
		GeneratedAt: r.now(),
	}

	owned, err := r.ownedStore(ctx, tenantID, storeID)
	if err != nil {
		return nil, err
	}
	if !owned {
		logger.Warn("店舗がテナントに属していません")
		return report, nil
	}

	latest, err := r.store.GetLatestInventoryCount(ctx, tenantID, storeID)
	if err != nil && !IsNotFound(err) {
		return nil, NewStorageError("get_latest_inventory_count", "最新棚卸の取得に失敗しました", err)
	}
	if latest == nil || latest.TenantID != tenantID || latest.StoreID != storeID {
		logger.Info("棚卸記録がないため推定在庫を算出できません")
		return report, nil
	}
	report.CountID = latest.ID
	report.CountDate = latest.CountDate

	since := latest.CountDate
	order := &itemOrder{}
	counted, err := r.countQuantities(ctx, latest.ID, order)
	if err != nil {
		return nil, err
	}
	received, err := r.receivedSince(ctx, tenantID, storeID, since, openEnd)
	if err != nil {
		return nil, err
	}
	transferredIn, transferredOut, err := r.transfersSince(ctx, tenantID, storeID, since, openEnd)
	if err != nil {
		return nil, err
	}
	waste, err := r.wasteSince(ctx, tenantID, storeID, since, logger)
	if err != nil {
		return nil, err
	}
	theoretical, err := r.theoreticalAfter(ctx, tenantID, storeID, since)
	if err != nil {
		return nil, err
	}
	items, err := r.catalog(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	for _, m := range []map[string]float64{received, transferredIn, waste, theoretical, transferredOut} {
		order.addKeys(m)
	}

	for _, id := range order.ids {
		row := OnHandRow{
			InventoryItemID:     id,
			ItemName:            items[id].Name,
			LastCountQty:        counted[id],
			ReceivedQty:         received[id],
			TransferredInQty:    transferredIn[id],
			WasteQty:            waste[id],
			TheoreticalUsageQty: theoretical[id],
			TransferredOutQty:   transferredOut[id],
		}
		row.SignedOnHand = row.LastCountQty + row.ReceivedQty + row.TransferredInQty -
			row.WasteQty - row.TheoreticalUsageQty - row.TransferredOutQty
		row.OnHand = row.SignedOnHand
		if row.OnHand < 0 {
			row.OnHand = 0
		}
		report.Rows = append(report.Rows, row)
	}

	logger.Info("推定在庫算出完了",
		zap.String("count_id", latest.ID),
		zap.Int("rows", len(report.Rows)),
	)
	return report, nil
}

// receivedSince sums posted receipt quantities whose delivery date is within [from, to]
func (r *LedgerReconciler) receivedSince(ctx context.Context, tenantID, storeID string, from, to time.Time) (map[string]float64, error) {
	lines, err := r.store.GetReceiptLinesForStore(ctx, tenantID, storeID, from, to)
	if err != nil {
		return nil, NewStorageError("get_receipt_lines", "入荷明細の取得に失敗しました", err)
	}
	out := make(map[string]float64)
	for _, l := range lines {
		if l.TenantID != tenantID || l.StoreID != storeID || !l.IsPosted() {
			continue
		}
		if !within(l.DeliveryDate(), from, to) {
			continue
		}
		out[l.InventoryItemID] += l.Quantity
	}
	return out, nil
}

// transfersSince sums completed transfers into and out of storeID completed within [from, to]
func (r *LedgerReconciler) transfersSince(ctx context.Context, tenantID, storeID string, from, to time.Time) (map[string]float64, map[string]float64, error) {
	lines, err := r.store.GetCompletedTransfersForStore(ctx, tenantID, storeID, from, to)
	if err != nil {
		return nil, nil, NewStorageError("get_completed_transfers", "店舗間移動の取得に失敗しました", err)
	}
	in := make(map[string]float64)
	out := make(map[string]float64)
	for _, l := range lines {
		if l.TenantID != tenantID || l.Status != TransferStatusCompleted || l.CompletedAt == nil {
			continue
		}
		if !within(*l.CompletedAt, from, to) {
			continue
		}
		if l.FromStoreID == storeID {
			out[l.InventoryItemID] += l.ShippedQty
		}
		if l.ToStoreID == storeID {
			in[l.InventoryItemID] += l.ShippedQty
		}
	}
	return in, out, nil
}

// wasteSince sums waste logged at or after since. Recipe waste is exploded in
// one batch; rows that cannot be exploded are skipped without failing the report.
// 廃棄数量を集計（完成品の廃棄は一括展開、展開できない行はスキップ）
func (r *LedgerReconciler) wasteSince(ctx context.Context, tenantID, storeID string, since time.Time, logger *zap.Logger) (map[string]float64, error) {
	logs, err := r.store.GetWasteLogsForStore(ctx, tenantID, storeID, since, openEnd)
	if err != nil {
		return nil, NewStorageError("get_waste_logs", "廃棄記録の取得に失敗しました", err)
	}
	out := make(map[string]float64)
	var recipeWaste []MenuItemSale
	for _, w := range logs {
		if w.TenantID != tenantID || w.StoreID != storeID || w.LoggedAt.Before(since) {
			continue
		}
		switch w.Type {
		case WasteTypeInventory:
			if w.InventoryItemID == "" || w.Quantity < 0 {
				r.skipWaste(logger, w, "invalid")
				continue
			}
			out[w.InventoryItemID] += w.Quantity
		case WasteTypeRecipe:
			if r.expander == nil {
				r.skipWaste(logger, w, "no_expander")
				continue
			}
			recipeWaste = append(recipeWaste, MenuItemSale{
				MenuItemID:   w.ID,
				RecipeID:     w.RecipeID,
				QuantitySold: w.Quantity,
			})
		}
	}
	if len(recipeWaste) == 0 {
		return out, nil
	}

	explosions, skipped, err := r.expander.ExplodeBatch(ctx, recipeWaste, tenantID)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		r.skipWaste(logger, WasteLog{ID: s.MenuItemID, Type: WasteTypeRecipe, RecipeID: s.RecipeID, Quantity: s.QuantitySold}, "invalid")
	}
	for _, e := range explosions {
		for _, u := range e.Usages {
			out[u.InventoryItemID] += u.RequiredQtyBaseUnit
		}
	}
	return out, nil
}

func (r *LedgerReconciler) skipWaste(logger *zap.Logger, w WasteLog, reason string) {
	r.metrics.wasteSkipped(reason)
	logger.Warn("廃棄記録を集計できないためスキップしました",
		zap.String("waste_id", w.ID),
		zap.String("type", string(w.Type)),
		zap.String("recipe_id", w.RecipeID),
		zap.String("inventory_item_id", w.InventoryItemID),
		zap.Float64("quantity", w.Quantity),
		zap.String("reason", reason),
	)
}

// theoreticalAfter sums lines of completed runs with a business date strictly after since
func (r *LedgerReconciler) theoreticalAfter(ctx context.Context, tenantID, storeID string, since time.Time) (map[string]float64, error) {
	lines, err := r.store.GetTheoreticalUsageForStore(ctx, tenantID, storeID, since)
	if err != nil {
		return nil, NewStorageError("get_theoretical_usage", "理論使用量の取得に失敗しました", err)
	}
	out := make(map[string]float64)
	for _, l := range lines {
		if l.TenantID != tenantID || l.StoreID != storeID || l.RunStatus != RunStatusCompleted {
			continue
		}
		if !l.BusinessDate.After(since) {
			continue
		}
		out[l.InventoryItemID] += l.RequiredQtyBaseUnit
	}
	return out, nil
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// itemOrder records item ids in first-seen order
type itemOrder struct {
	ids  []string
	seen map[string]bool
}

func (o *itemOrder) add(id string) {
	if o.seen == nil {
		o.seen = make(map[string]bool)
	}
	if id == "" || o.seen[id] {
		return
	}
	o.seen[id] = true
	o.ids = append(o.ids, id)
}

// addKeys appends unseen keys of m in sorted order so output stays deterministic
func (o *itemOrder) addKeys(m map[string]float64) {
	for _, id := range sortedKeys(m) {
		o.add(id)
	}
}
