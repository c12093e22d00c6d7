package storage

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory"
)

// TestComponentRow はレシピ構成行から構成要素への変換のテスト
func TestComponentRow(t *testing.T) {
	item := componentRow{
		ID:              "c1",
		RecipeID:        "pizza",
		ComponentType:   string(inventory.ComponentTypeInventoryItem),
		InventoryItemID: sql.NullString{String: "flour", Valid: true},
		Quantity:        0.5,
		UnitID:          sql.NullString{String: "lb", Valid: true},
	}.toComponent()
	require.NotNil(t, item.Item)
	assert.Nil(t, item.SubRecipe)
	assert.Equal(t, "flour", item.Item.ItemID)
	assert.Equal(t, 0.5, item.Item.Qty)
	assert.Equal(t, "lb", item.Item.UnitID)

	sub := componentRow{
		ID:            "c2",
		RecipeID:      "pizza",
		ComponentType: string(inventory.ComponentTypeRecipe),
		SubRecipeID:   sql.NullString{String: "dough", Valid: true},
		Quantity:      1,
	}.toComponent()
	require.NotNil(t, sub.SubRecipe)
	assert.Nil(t, sub.Item)
	assert.Equal(t, "dough", sub.SubRecipe.RecipeID)
	assert.Empty(t, sub.SubRecipe.UnitID)
	assert.Equal(t, inventory.ComponentTypeRecipe, sub.Type())
}

// TestToLines は発生元トレースJSONの復元のテスト
func TestToLines(t *testing.T) {
	lines, err := toLines([]lineRow{
		{ID: "l1", RunID: "r1", RunStatus: inventory.RunStatusCompleted, InventoryItemID: "flour", RequiredQtyBaseUnit: 5,
			SourceTrace: []byte(`[{"menu_item_id":"m1","menu_item_name":"Pizza","sold_qty":10,"contributed_qty":5}]`)},
		{ID: "l2", RunID: "r1", InventoryItemID: "salt"},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Len(t, lines[0].SourceTrace, 1)
	assert.Equal(t, "m1", lines[0].SourceTrace[0].MenuItemID)
	assert.Equal(t, 5.0, lines[0].SourceTrace[0].ContributedQty)
	assert.Equal(t, inventory.RunStatusCompleted, lines[0].RunStatus)
	assert.Empty(t, lines[1].SourceTrace)

	_, err = toLines([]lineRow{{ID: "bad", SourceTrace: []byte(`{`)}})
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(sql.ErrNoRows))
}

func TestDefaultPoolConfig(t *testing.T) {
	pool := DefaultPoolConfig()
	assert.Equal(t, 25, pool.MaxOpenConns)
	assert.Equal(t, 10, pool.MaxIdleConns)
}
