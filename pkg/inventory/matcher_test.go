package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func catalogStore() *fakeStore {
	store := newFakeStore()
	store.addItem(InventoryItem{ID: "milk", TenantID: testTenant, Name: "Whole Milk", SKU: "WM-1", CategoryName: "Dairy", IsActive: true})
	store.addItem(InventoryItem{ID: "tomato", TenantID: testTenant, Name: "Roma Tomato", SKU: "TOM-25", CategoryName: "Produce", IsActive: true})
	store.addItem(InventoryItem{ID: "old-flour", TenantID: testTenant, Name: "AP Flour", SKU: "FL-50", CategoryName: "Dry Goods", IsActive: false})
	store.addItem(InventoryItem{ID: "other", TenantID: "tenant-2", Name: "Whole Milk", SKU: "WM-1", CategoryName: "Dairy", IsActive: true})
	return store
}

func newTestMatcher(store *fakeStore) *ItemMatcher {
	return NewItemMatcher(store, zap.NewNop(), nil, 4)
}

// TestItemMatcher_ExactNameAndSKU は名前とSKUが完全一致する場合のテスト
func TestItemMatcher_ExactNameAndSKU(t *testing.T) {
	m := newTestMatcher(catalogStore())

	result, err := m.FindBestMatch(context.Background(), VendorProduct{VendorSKU: " wm-1 ", Name: "WHOLE  milk", CategoryCode: "dairy"}, testTenant)
	require.NoError(t, err)
	require.NotNil(t, result.InventoryItemID)
	assert.Equal(t, "milk", *result.InventoryItemID)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
	assert.GreaterOrEqual(t, result.Score, 0.85)
	assert.Equal(t, 1.0, result.NameScore)
	assert.Equal(t, 1.0, result.SKUScore)
	assert.Equal(t, 1.0, result.CategoryScore)
}

// TestItemMatcher_Dissimilar は全く異なる商品が none になることのテスト
func TestItemMatcher_Dissimilar(t *testing.T) {
	m := newTestMatcher(catalogStore())

	result, err := m.FindBestMatch(context.Background(), VendorProduct{VendorSKU: "999", Name: "Zzqx Widget", CategoryCode: "hardware"}, testTenant)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceNone, result.Confidence)
	assert.Nil(t, result.InventoryItemID)
	assert.Less(t, result.Score, 0.45)
}

// TestItemMatcher_EmptyCatalog は空カタログの場合のテスト
func TestItemMatcher_EmptyCatalog(t *testing.T) {
	store := newFakeStore()
	store.addItem(InventoryItem{ID: "inactive", TenantID: testTenant, Name: "Whole Milk", SKU: "WM-1", IsActive: false})
	m := newTestMatcher(store)

	result, err := m.FindBestMatch(context.Background(), VendorProduct{VendorSKU: "WM-1", Name: "Whole Milk"}, testTenant)
	require.NoError(t, err)
	assert.Nil(t, result.InventoryItemID)
	assert.Equal(t, ConfidenceNone, result.Confidence)
	assert.Equal(t, 0.0, result.Score)
}

func TestItemMatcher_Tiers(t *testing.T) {
	m := newTestMatcher(catalogStore())
	ctx := context.Background()

	tests := []struct {
		name    string
		product VendorProduct
		want    Confidence
		score   float64
	}{
		{
			// SKU完全一致のみで high
			name:    "sku only",
			product: VendorProduct{VendorSKU: " Tom-25", Name: "Something Else", CategoryCode: "misc"},
			want:    ConfidenceHigh,
		},
		{
			// 名前包含 0.8*0.6 + SKU包含 0.5*0.25 + カテゴリ一致 0.15
			name:    "medium",
			product: VendorProduct{VendorSKU: "WM", Name: "Whole Milk 1 Gallon", CategoryCode: "Dairy"},
			want:    ConfidenceMedium,
			score:   0.48 + 0.125 + 0.15,
		},
		{
			// 名前包含 0.8*0.6 + カテゴリ一致 0.15
			name:    "low",
			product: VendorProduct{VendorSKU: "X-77", Name: "Whole Milk 1 Gallon", CategoryCode: "Dairy"},
			want:    ConfidenceLow,
			score:   0.48 + 0.15,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.FindBestMatch(ctx, tt.product, testTenant)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Confidence)
			if tt.score > 0 {
				assert.InDelta(t, tt.score, result.Score, 1e-9)
			}
		})
	}
}

// TestCatalogSnapshot_TieKeepsFirst は同点時にカタログ順で先の品目が採用されることのテスト
func TestCatalogSnapshot_TieKeepsFirst(t *testing.T) {
	snap := NewCatalogSnapshot(testTenant, []InventoryItem{
		{ID: "t1", TenantID: testTenant, Name: "Tomato", IsActive: true},
		{ID: "t2", TenantID: testTenant, Name: "Tomato", IsActive: true},
	}, nil)

	result := snap.Match(VendorProduct{VendorSKU: "v1", Name: "tomato"})
	require.NotNil(t, result.InventoryItemID)
	assert.Equal(t, "t1", *result.InventoryItemID)
}

// TestCatalogSnapshot_CategoryFromTable はカテゴリIDからカテゴリ名を解決するテスト
func TestCatalogSnapshot_CategoryFromTable(t *testing.T) {
	catID := "cat-1"
	snap := NewCatalogSnapshot(testTenant,
		[]InventoryItem{{ID: "lettuce", TenantID: testTenant, Name: "Iceberg Lettuce", CategoryID: &catID, IsActive: true}},
		[]Category{{ID: "cat-1", TenantID: testTenant, Name: "Produce"}, {ID: "cat-1", TenantID: "tenant-2", Name: "Other"}},
	)

	result := snap.Match(VendorProduct{VendorSKU: "v", Name: "Iceberg Lettuce", CategoryCode: "PRODUCE"})
	assert.Equal(t, 1.0, result.CategoryScore)
}

func TestScoreFunctions(t *testing.T) {
	assert.Equal(t, 0.0, nameScore("", "tomato"))
	assert.Equal(t, 1.0, nameScore("tomato", "tomato"))
	assert.Equal(t, 0.8, nameScore("tomato", "tomatoes"))
	assert.InDelta(t, 1-2.0/6, nameScore("potato", "tomato"), 1e-9)

	assert.Equal(t, 1.0, skuScore("abc123", "abc123"))
	assert.Equal(t, 0.5, skuScore("abc", "abc123"))
	assert.Equal(t, 0.0, skuScore("", "abc"))
	assert.Equal(t, 0.0, skuScore("abc", "xyz"))

	assert.Equal(t, 1.0, categoryScore("dairy", "dairy"))
	assert.Equal(t, 0.8, categoryScore("dry goods", "dry"))
	assert.Equal(t, 0.7, categoryScore("walk-in cooler", "dairy"))
	assert.Equal(t, 0.7, categoryScore("poultry", "fresh meat"))
	assert.Equal(t, 0.7, categoryScore("freezer", "frozen foods"))
	assert.InDelta(t, nameScore("paper", "cleaning")*0.6, categoryScore("paper", "cleaning"), 1e-12)
}

// TestItemMatcher_BatchMatch はカタログを1回だけ取得して一括照合するテスト
func TestItemMatcher_BatchMatch(t *testing.T) {
	store := catalogStore()
	m := newTestMatcher(store)

	products := []VendorProduct{
		{VendorSKU: "WM-1", Name: "Whole Milk", CategoryCode: "Dairy"},
		{VendorSKU: "TOM-25", Name: "Roma Tomato", CategoryCode: "Produce"},
		{VendorSKU: "NEW-1", Name: "Saffron Threads", CategoryCode: "Spice"},
		{VendorSKU: "WM-1", Name: "Zzz", CategoryCode: "Zzz"},
	}

	results, err := m.BatchMatch(context.Background(), products, testTenant)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.catalogCalls.Load())
	require.Len(t, results, 3)

	assert.Equal(t, "milk", *results["WM-1"].InventoryItemID)
	assert.Equal(t, ConfidenceHigh, results["WM-1"].Confidence)
	assert.Equal(t, "tomato", *results["TOM-25"].InventoryItemID)
	assert.Equal(t, ConfidenceNone, results["NEW-1"].Confidence)
}

func TestItemMatcher_StorageError(t *testing.T) {
	store := catalogStore()
	store.failOn["GetInventoryItems"] = assert.AnError
	m := newTestMatcher(store)

	_, err := m.BatchMatch(context.Background(), []VendorProduct{{VendorSKU: "a", Name: "a"}}, testTenant)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
