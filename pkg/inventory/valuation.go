package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultValuationLookback is the receipt window used for weighted average costs
const DefaultValuationLookback = 90 * 24 * time.Hour

// ValuationRow is the value of one item's estimated on-hand
// 品目別の推定在庫評価額
type ValuationRow struct {
	InventoryItemID string  `json:"inventory_item_id"`
	ItemName        string  `json:"item_name"`
	OnHand          float64 `json:"on_hand"`
	UnitCost        float64 `json:"unit_cost"`
	Value           float64 `json:"value"`
	ABCClass        string  `json:"abc_class"`
}

// ValuationReport values a store's estimated on-hand
// 店舗の推定在庫評価レポート
type ValuationReport struct {
	TenantID   string         `json:"tenant_id"`
	StoreID    string         `json:"store_id"`
	CountID    string         `json:"count_id"`
	Rows       []ValuationRow `json:"rows"`
	TotalValue float64        `json:"total_value"`
}

// ValuationEngine values estimated on-hand inventory
// 推定在庫の評価エンジン
type ValuationEngine struct {
	store      ledgerSource
	reconciler *LedgerReconciler
	logger     *zap.Logger
	lookback   time.Duration
	now        func() time.Time
}

// NewValuationEngine creates a new valuation engine
// 新しい在庫評価エンジンを作成
func NewValuationEngine(store ledgerSource, reconciler *LedgerReconciler, logger *zap.Logger, lookback time.Duration) *ValuationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookback <= 0 {
		lookback = DefaultValuationLookback
	}
	return &ValuationEngine{
		store:      store,
		reconciler: reconciler,
		logger:     logger,
		lookback:   lookback,
		now:        time.Now,
	}
}

// ValueStore values the estimated on-hand of a store using weighted average
// receipt costs over the lookback window, falling back to the item cost basis.
// 店舗の推定在庫を加重平均原価で評価
func (v *ValuationEngine) ValueStore(ctx context.Context, tenantID, storeID string) (*ValuationReport, error) {
	onHand, err := v.reconciler.EstimatedOnHand(ctx, tenantID, storeID)
	if err != nil {
		return nil, err
	}
	if len(onHand.Rows) == 0 {
		return &ValuationReport{TenantID: tenantID, StoreID: storeID, Rows: []ValuationRow{}}, nil
	}

	now := v.now()
	receipts, err := v.store.GetReceiptLinesForStore(ctx, tenantID, storeID, now.Add(-v.lookback), now)
	if err != nil {
		return nil, NewStorageError("get_receipt_lines", "入荷明細の取得に失敗しました", err)
	}
	scoped := receipts[:0:0]
	for _, l := range receipts {
		if l.TenantID == tenantID && l.StoreID == storeID && l.IsPosted() {
			scoped = append(scoped, l)
		}
	}

	items, err := v.reconciler.catalog(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := ValueOnHand(onHand, items, WeightedAverageCosts(scoped))
	v.logger.Info("在庫評価完了",
		zap.String("tenant_id", tenantID),
		zap.String("store_id", storeID),
		zap.Int("rows", len(report.Rows)),
		zap.Float64("total_value", report.TotalValue),
	)
	return report, nil
}

// WeightedAverageCosts computes sum(qty*unitCost)/sum(qty) per item over
// receipt lines with a positive unit cost and quantity.
// 入荷明細から品目別の加重平均原価を算出
func WeightedAverageCosts(lines []ReceiptLine) map[string]float64 {
	type acc struct {
		value decimal.Decimal
		qty   decimal.Decimal
	}
	sums := make(map[string]*acc)
	for _, l := range lines {
		if l.UnitCost <= 0 || l.Quantity <= 0 {
			continue
		}
		a, ok := sums[l.InventoryItemID]
		if !ok {
			a = &acc{value: decimal.Zero, qty: decimal.Zero}
			sums[l.InventoryItemID] = a
		}
		q := decimal.NewFromFloat(l.Quantity)
		a.qty = a.qty.Add(q)
		a.value = a.value.Add(q.Mul(decimal.NewFromFloat(l.UnitCost)))
	}

	out := make(map[string]float64, len(sums))
	for id, a := range sums {
		avg, _ := a.value.Div(a.qty).Float64()
		out[id] = avg
	}
	return out
}

// ValueOnHand extends an on-hand report with unit costs and values. The unit cost
// is the weighted average when known, else the item's cost basis.
// 推定在庫に単価と評価額を付与
func ValueOnHand(onHand *OnHandReport, items map[string]InventoryItem, averages map[string]float64) *ValuationReport {
	report := &ValuationReport{
		TenantID: onHand.TenantID,
		StoreID:  onHand.StoreID,
		CountID:  onHand.CountID,
		Rows:     make([]ValuationRow, 0, len(onHand.Rows)),
	}

	values := make(map[string]float64, len(onHand.Rows))
	for _, r := range onHand.Rows {
		item := items[r.InventoryItemID]
		cost, ok := averages[r.InventoryItemID]
		if !ok || cost <= 0 {
			cost = item.CostBasis()
		}
		row := ValuationRow{
			InventoryItemID: r.InventoryItemID,
			ItemName:        r.ItemName,
			OnHand:          r.OnHand,
			UnitCost:        cost,
			Value:           r.OnHand * cost,
		}
		values[r.InventoryItemID] = row.Value
		report.TotalValue += row.Value
		report.Rows = append(report.Rows, row)
	}

	classes := classifyABC(values)
	for i := range report.Rows {
		report.Rows[i].ABCClass = classes[report.Rows[i].InventoryItemID]
	}
	report.TotalValue = RoundMoney(report.TotalValue)
	return report
}

// classifyABC classifies items into A, B, C categories by cumulative value share
// 評価額の累積比率で品目をA、B、Cに分類
func classifyABC(itemValues map[string]float64) map[string]string {
	type itemValue struct {
		ItemID string
		Value  float64
	}

	var items []itemValue
	totalValue := 0.0
	for itemID, value := range itemValues {
		items = append(items, itemValue{ItemID: itemID, Value: value})
		totalValue += value
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Value == items[j].Value {
			return items[i].ItemID < items[j].ItemID
		}
		return items[i].Value > items[j].Value
	})

	// ABC分類（80-15-5の法則）
	classification := make(map[string]string, len(items))
	if totalValue <= 0 {
		for _, item := range items {
			classification[item.ItemID] = "C"
		}
		return classification
	}

	// 直前までの累積比率で判定するため、最上位品目は常にA
	cumulativeValue := 0.0
	for _, item := range items {
		percentage := cumulativeValue / totalValue
		cumulativeValue += item.Value

		switch {
		case percentage < 0.8:
			classification[item.ItemID] = "A"
		case percentage < 0.95:
			classification[item.ItemID] = "B"
		default:
			classification[item.ItemID] = "C"
		}
	}
	return classification
}
