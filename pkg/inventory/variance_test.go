package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCalculateVariance は実使用量と理論使用量の差異計算のテスト
func TestCalculateVariance(t *testing.T) {
	actual := []UsageRow{
		{InventoryItemID: "flour", ItemName: "Flour", Usage: 120, UsageCost: 48},
		{InventoryItemID: "cheese", ItemName: "Mozzarella", Usage: 10, UsageCost: 50},
		{InventoryItemID: "basil", ItemName: "Basil", Usage: -2, UsageCost: -4, IsNegativeUsage: true},
	}
	theoretical := []TheoreticalUsageLine{
		{InventoryItemID: "flour", RequiredQtyBaseUnit: 60, CostAtSale: 24},
		{InventoryItemID: "flour", RequiredQtyBaseUnit: 40, CostAtSale: 16},
		{InventoryItemID: "cheese", RequiredQtyBaseUnit: 12, CostAtSale: 60},
		{InventoryItemID: "olive-oil", RequiredQtyBaseUnit: 3, CostAtSale: 15},
	}

	report := CalculateVariance(actual, theoretical)
	require.Len(t, report.Rows, 4)

	flour := report.Rows[0]
	assert.Equal(t, "flour", flour.InventoryItemID)
	assert.Equal(t, 100.0, flour.TheoreticalQty)
	assert.Equal(t, 20.0, flour.VarianceQty)
	assert.Equal(t, 8.0, flour.VarianceCost)

	cheese := report.Rows[1]
	assert.Equal(t, -2.0, cheese.VarianceQty)
	assert.Equal(t, -10.0, cheese.VarianceCost)

	basil := report.Rows[2]
	assert.True(t, basil.IsNegativeUsage)
	assert.Equal(t, 0.0, basil.TheoreticalQty)
	assert.Equal(t, -4.0, basil.VarianceCost)

	// 理論値のみの品目は実使用量0として末尾に出力される
	oil := report.Rows[3]
	assert.Equal(t, "olive-oil", oil.InventoryItemID)
	assert.Equal(t, -3.0, oil.VarianceQty)
	assert.Equal(t, -15.0, oil.VarianceCost)

	assert.Equal(t, 94.0, report.TotalActualCost)
	assert.Equal(t, 115.0, report.TotalTheoreticalCost)
	assert.Equal(t, 8.0, report.PositiveVarianceCost)
	assert.Equal(t, -29.0, report.NegativeVarianceCost)
	assert.Equal(t, -21.0, report.NetVarianceCost)
}

func TestCalculateVariance_Empty(t *testing.T) {
	report := CalculateVariance(nil, nil)
	assert.NotNil(t, report.Rows)
	assert.Empty(t, report.Rows)
	assert.Zero(t, report.NetVarianceCost)
}
