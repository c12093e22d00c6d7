package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRounding(t *testing.T) {
	assert.Equal(t, 2.22, RoundMoney(2.2222222))
	assert.Equal(t, 0.13, RoundMoney(0.125))
	assert.Equal(t, 5.5556, RoundQuantity(5.555555))
	assert.Equal(t, 0.0, RoundQuantity(0.00001))
}

// TestSumMoney は小数の累積誤差が出ないことのテスト
func TestSumMoney(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = 0.1
	}
	assert.Equal(t, 100.0, sumMoney(values...))
	assert.Equal(t, 0.0, sumMoney())
}

// TestPresentUsages は入力を変更せずに丸め済みコピーを返すことのテスト
func TestPresentUsages(t *testing.T) {
	in := []IngredientUsage{{
		InventoryItemID:     "flour",
		RequiredQtyBaseUnit: 5.5555555,
		CostAtSale:          2.2222222,
		SourceTrace:         []SourceTrace{{MenuItemID: "m1", SoldQty: 10, ContributedQty: 5.5555555}},
	}}

	out := PresentUsages(in)
	require.Len(t, out, 1)
	assert.Equal(t, 5.5556, out[0].RequiredQtyBaseUnit)
	assert.Equal(t, 2.22, out[0].CostAtSale)
	assert.Equal(t, 5.5556, out[0].SourceTrace[0].ContributedQty)

	assert.Equal(t, 5.5555555, in[0].RequiredQtyBaseUnit)
	assert.Equal(t, 5.5555555, in[0].SourceTrace[0].ContributedQty)
}

func TestPresentUsageRows(t *testing.T) {
	in := []UsageRow{{InventoryItemID: "flour", Usage: 1.0 / 3, UnitCost: 0.4, UsageCost: 0.4 / 3, IsNegativeUsage: false}}

	out := PresentUsageRows(in)
	require.Len(t, out, 1)
	assert.Equal(t, 0.3333, out[0].Usage)
	assert.Equal(t, 0.13, out[0].UsageCost)
	assert.Equal(t, 1.0/3, in[0].Usage)
}
