package inventory

import "github.com/shopspring/decimal"

const (
	moneyPlaces    = 2
	quantityPlaces = 4
)

// RoundMoney rounds a currency amount to cents for presentation
// 金額を表示用に小数第2位で丸める
func RoundMoney(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(moneyPlaces).Float64()
	return f
}

// RoundQuantity rounds a quantity to 4 decimal places for presentation
// 数量を表示用に小数第4位で丸める
func RoundQuantity(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(quantityPlaces).Float64()
	return f
}

// PresentUsages returns a rounded copy of usages; the input is left untouched
// 丸め済みのコピーを返す（入力は変更しない）
func PresentUsages(usages []IngredientUsage) []IngredientUsage {
	out := make([]IngredientUsage, len(usages))
	for i, u := range usages {
		u.RequiredQtyBaseUnit = RoundQuantity(u.RequiredQtyBaseUnit)
		u.CostAtSale = RoundMoney(u.CostAtSale)
		traces := make([]SourceTrace, len(u.SourceTrace))
		for j, t := range u.SourceTrace {
			t.ContributedQty = RoundQuantity(t.ContributedQty)
			traces[j] = t
		}
		u.SourceTrace = traces
		out[i] = u
	}
	return out
}

// PresentUsageRows returns a rounded copy of usage rows
// 実使用量行の丸め済みコピーを返す
func PresentUsageRows(rows []UsageRow) []UsageRow {
	out := make([]UsageRow, len(rows))
	for i, r := range rows {
		r.PreviousQty = RoundQuantity(r.PreviousQty)
		r.ReceivedQty = RoundQuantity(r.ReceivedQty)
		r.TransferredOutQty = RoundQuantity(r.TransferredOutQty)
		r.CurrentQty = RoundQuantity(r.CurrentQty)
		r.Usage = RoundQuantity(r.Usage)
		r.UnitCost = RoundQuantity(r.UnitCost)
		r.UsageCost = RoundMoney(r.UsageCost)
		out[i] = r
	}
	return out
}

// sumMoney adds amounts with decimal arithmetic so long runs do not drift
func sumMoney(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}
