package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProcessor(store *fakeStore, writer *MockStore, pub EventPublisher) *OrderGuideProcessor {
	return NewOrderGuideProcessor(newTestMatcher(store), testStorage{store, writer}, pub, zap.NewNop(), nil)
}

func vendorSKU(sku string) interface{} {
	return mock.MatchedBy(func(v *VendorItem) bool { return v.VendorSKU == sku })
}

// TestOrderGuideProcessor_Process は信頼度ごとの振り分けのテスト
func TestOrderGuideProcessor_Process(t *testing.T) {
	writer := new(MockStore)
	pub := new(MockPublisher)
	store := catalogStore()
	store.units = []Unit{{ID: "oz", Name: "Ounce", Abbreviation: "oz"}}
	p := newTestProcessor(store, writer, pub)
	ctx := context.Background()

	var created *InventoryItem
	writer.On("CreateVendorItem", ctx, vendorSKU("WM-1")).Return(nil)
	writer.On("WithinTx", ctx).Return(nil)
	writer.On("CreateInventoryItem", ctx, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(1).(*InventoryItem) }).
		Return(nil)
	writer.On("CreateVendorItem", ctx, vendorSKU("NEW-1")).Return(nil)
	pub.On("PublishVendorItemLinked", ctx, mock.MatchedBy(func(e VendorItemLinkedEvent) bool {
		return e.TenantID == testTenant && e.VendorID == "sysco"
	})).Return(nil)

	summary, err := p.Process(ctx, testTenant, "sysco", []VendorProduct{
		{VendorSKU: "WM-1", Name: "Whole Milk", CategoryCode: "Dairy", CaseSize: 4, Unit: "gal", Price: 18},
		{VendorSKU: "X-77", Name: "Whole Milk 1 Gallon", CategoryCode: "Dairy", CaseSize: 1, Unit: "gal", Price: 5},
		{VendorSKU: "NEW-1", Name: "Saffron Threads", CategoryCode: "Spice", CaseSize: 4, Unit: "oz", Price: 40},
		{VendorSKU: "", Name: "No SKU"},
		{VendorSKU: "WM-1", Name: "Whole Milk Again"},
	})
	require.NoError(t, err)

	require.Len(t, summary.Linked, 1)
	assert.Equal(t, "milk", summary.Linked[0].InventoryItemID)
	assert.Equal(t, OutcomeLinked, summary.Linked[0].Outcome)
	assert.NotEmpty(t, summary.Linked[0].VendorItemID)

	require.Len(t, summary.Review, 1)
	assert.Equal(t, "X-77", summary.Review[0].Product.VendorSKU)
	assert.Equal(t, ConfidenceLow, summary.Review[0].Match.Confidence)

	require.Len(t, summary.Created, 1)
	require.NotNil(t, created)
	assert.Equal(t, created.ID, summary.Created[0].InventoryItemID)
	assert.Equal(t, "NEW-1", created.SKU)
	assert.Equal(t, "oz", created.BaseUnitID)
	assert.Equal(t, 10.0, created.PricePerUnit)
	assert.Equal(t, 100.0, created.YieldPercent)
	assert.True(t, created.IsActive)

	require.Len(t, summary.Errors, 2)
	assert.Equal(t, "", summary.Errors[0].VendorSKU)
	assert.Equal(t, "WM-1", summary.Errors[1].VendorSKU)

	writer.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "PublishVendorItemLinked", 2)
}

// TestOrderGuideProcessor_PartialFailure は1件の失敗が他の処理を止めないことのテスト
func TestOrderGuideProcessor_PartialFailure(t *testing.T) {
	writer := new(MockStore)
	p := newTestProcessor(catalogStore(), writer, nil)
	ctx := context.Background()

	writer.On("CreateVendorItem", ctx, vendorSKU("WM-1")).Return(ErrDuplicateVendorItem)
	writer.On("CreateVendorItem", ctx, vendorSKU("TOM-25")).Return(nil)
	writer.On("WithinTx", ctx).Return(assert.AnError)

	summary, err := p.Process(ctx, testTenant, "sysco", []VendorProduct{
		{VendorSKU: "WM-1", Name: "Whole Milk", CategoryCode: "Dairy"},
		{VendorSKU: "NEW-1", Name: "Saffron Threads", CategoryCode: "Spice"},
		{VendorSKU: "TOM-25", Name: "Roma Tomato", CategoryCode: "Produce"},
	})
	require.NoError(t, err)

	require.Len(t, summary.Linked, 1)
	assert.Equal(t, "tomato", summary.Linked[0].InventoryItemID)
	assert.Empty(t, summary.Created)
	require.Len(t, summary.Errors, 2)
	assert.Equal(t, "WM-1", summary.Errors[0].VendorSKU)
	assert.Equal(t, "NEW-1", summary.Errors[1].VendorSKU)
	writer.AssertNotCalled(t, "CreateInventoryItem", mock.Anything, mock.Anything)
}

func TestOrderGuideProcessor_Validation(t *testing.T) {
	p := newTestProcessor(catalogStore(), new(MockStore), nil)

	_, err := p.Process(context.Background(), testTenant, "", nil)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "vendor_id", vErr.Field)
}

// TestOrderGuideProcessor_UnitResolution は仕入先の単位表記を単位マスタで解決することのテスト
func TestOrderGuideProcessor_UnitResolution(t *testing.T) {
	writer := new(MockStore)
	store := catalogStore()
	store.units = []Unit{
		{ID: "oz", Name: "Ounce", Abbreviation: "oz"},
		{ID: "lb", Name: "Pound", Abbreviation: "LBS"},
	}
	p := newTestProcessor(store, writer, nil)
	ctx := context.Background()

	created := make(map[string]string)
	writer.On("WithinTx", ctx).Return(nil)
	writer.On("CreateInventoryItem", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			item := args.Get(1).(*InventoryItem)
			created[item.SKU] = item.BaseUnitID
		}).
		Return(nil)
	writer.On("CreateVendorItem", ctx, mock.Anything).Return(nil)

	summary, err := p.Process(ctx, testTenant, "sysco", []VendorProduct{
		{VendorSKU: "SAF-1", Name: "Saffron Threads", CategoryCode: "Spice", CaseSize: 1, Unit: "Ounce", Price: 10},
		{VendorSKU: "PEP-1", Name: "Pink Peppercorn", CategoryCode: "Spice", CaseSize: 1, Unit: "lbs", Price: 12},
		{VendorSKU: "VAN-1", Name: "Vanilla Beans", CategoryCode: "Spice", CaseSize: 1, Unit: "CS", Price: 30},
	})
	require.NoError(t, err)
	require.Len(t, summary.Created, 3)
	assert.Equal(t, "oz", created["SAF-1"])
	assert.Equal(t, "lb", created["PEP-1"])
	assert.Equal(t, "", created["VAN-1"])
}

// TestOrderGuideProcessor_InvalidCreatedItem は作成する品目が不正な場合にエラーとして記録することのテスト
func TestOrderGuideProcessor_InvalidCreatedItem(t *testing.T) {
	writer := new(MockStore)
	p := newTestProcessor(catalogStore(), writer, nil)
	ctx := context.Background()

	// ケース入数が1未満のため単価が上限を超える
	summary, err := p.Process(ctx, testTenant, "sysco", []VendorProduct{
		{VendorSKU: "SAF-9", Name: "Saffron Threads", CategoryCode: "Spice", CaseSize: 0.5, Unit: "oz", Price: 999999999},
	})
	require.NoError(t, err)
	assert.Empty(t, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "SAF-9", summary.Errors[0].VendorSKU)
	writer.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestOrderGuideProcessor_UnitLookupError(t *testing.T) {
	store := catalogStore()
	store.failOn["GetUnits"] = assert.AnError
	p := newTestProcessor(store, new(MockStore), nil)

	_, err := p.Process(context.Background(), testTenant, "sysco", []VendorProduct{
		{VendorSKU: "SAF-1", Name: "Saffron Threads", CategoryCode: "Spice", CaseSize: 1, Unit: "oz", Price: 10},
	})
	assert.ErrorIs(t, err, assert.AnError)
}
