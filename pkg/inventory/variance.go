package inventory

import (
	"maps"
	"slices"
)

// VarianceRow compares actual and theoretical usage of one item
// 品目別の実使用量と理論使用量の差異
type VarianceRow struct {
	InventoryItemID string  `json:"inventory_item_id"`
	ItemName        string  `json:"item_name"`
	ActualQty       float64 `json:"actual_qty"`
	TheoreticalQty  float64 `json:"theoretical_qty"`
	VarianceQty     float64 `json:"variance_qty"`
	ActualCost      float64 `json:"actual_cost"`
	TheoreticalCost float64 `json:"theoretical_cost"`
	VarianceCost    float64 `json:"variance_cost"`
	IsNegativeUsage bool    `json:"is_negative_usage"`
}

// VarianceReport sums item variances. Positive variance means more was used
// than the recipes account for; NegativeVarianceCost is a signed sum (<= 0).
// 差異レポート（正の差異はロス・過剰盛り付け）
type VarianceReport struct {
	Rows                 []VarianceRow `json:"rows"`
	TotalActualCost      float64       `json:"total_actual_cost"`
	TotalTheoreticalCost float64       `json:"total_theoretical_cost"`
	PositiveVarianceCost float64       `json:"positive_variance_cost"`
	NegativeVarianceCost float64       `json:"negative_variance_cost"`
	NetVarianceCost      float64       `json:"net_variance_cost"`
}

// CalculateVariance composes actual usage rows with theoretical usage lines.
// Items present on only one side count zero on the other.
// 実使用量と理論使用量から差異を算出
func CalculateVariance(actual []UsageRow, theoretical []TheoreticalUsageLine) *VarianceReport {
	type theo struct {
		qty  float64
		cost float64
	}
	theoByItem := make(map[string]*theo)
	var theoOrder []string
	for _, l := range theoretical {
		t, ok := theoByItem[l.InventoryItemID]
		if !ok {
			t = &theo{}
			theoByItem[l.InventoryItemID] = t
			theoOrder = append(theoOrder, l.InventoryItemID)
		}
		t.qty += l.RequiredQtyBaseUnit
		t.cost += l.CostAtSale
	}

	report := &VarianceReport{Rows: make([]VarianceRow, 0, len(actual))}
	seen := make(map[string]bool, len(actual))
	for _, a := range actual {
		seen[a.InventoryItemID] = true
		row := VarianceRow{
			InventoryItemID: a.InventoryItemID,
			ItemName:        a.ItemName,
			ActualQty:       a.Usage,
			ActualCost:      a.UsageCost,
			IsNegativeUsage: a.IsNegativeUsage,
		}
		if t, ok := theoByItem[a.InventoryItemID]; ok {
			row.TheoreticalQty = t.qty
			row.TheoreticalCost = t.cost
		}
		report.add(row)
	}
	for _, id := range theoOrder {
		if seen[id] {
			continue
		}
		t := theoByItem[id]
		report.add(VarianceRow{
			InventoryItemID: id,
			TheoreticalQty:  t.qty,
			TheoreticalCost: t.cost,
		})
	}
	return report
}

func (r *VarianceReport) add(row VarianceRow) {
	row.VarianceQty = row.ActualQty - row.TheoreticalQty
	row.VarianceCost = row.ActualCost - row.TheoreticalCost
	r.TotalActualCost += row.ActualCost
	r.TotalTheoreticalCost += row.TheoreticalCost
	if row.VarianceCost > 0 {
		r.PositiveVarianceCost += row.VarianceCost
	} else {
		r.NegativeVarianceCost += row.VarianceCost
	}
	r.NetVarianceCost += row.VarianceCost
	r.Rows = append(r.Rows, row)
}

func sortedKeys(m map[string]float64) []string {
	return slices.Sorted(maps.Keys(m))
}
