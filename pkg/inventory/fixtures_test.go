package inventory

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"
)

// fakeStore はテスト用のインメモリ読み取りストア
// テナント・店舗での絞り込みは意図的に行わず、コア側の再フィルタを検証する
type fakeStore struct {
	recipes     map[string]Recipe
	components  map[string][]RecipeComponent
	items       []InventoryItem
	conversions []UnitConversion
	categories  []Category
	units       []Unit
	stores      map[string]Store
	counts      map[string]InventoryCount
	countLines  []InventoryCountLine
	receipts    []ReceiptLine
	transfers   []TransferLine
	waste       []WasteLog
	theoretical []TheoreticalUsageLine

	failOn map[string]error // メソッド名 -> 返すエラー

	recipeCalls     atomic.Int64
	catalogCalls    atomic.Int64
	conversionCalls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recipes:    make(map[string]Recipe),
		components: make(map[string][]RecipeComponent),
		stores:     make(map[string]Store),
		counts:     make(map[string]InventoryCount),
		failOn:     make(map[string]error),
	}
}

func (f *fakeStore) addRecipe(tenantID, id, name string, comps ...RecipeComponent) {
	f.recipes[id] = Recipe{ID: id, TenantID: tenantID, Name: name}
	for i := range comps {
		comps[i].RecipeID = id
	}
	f.components[id] = comps
}

func (f *fakeStore) addItem(item InventoryItem) {
	f.items = append(f.items, item)
}

func itemComp(itemID string, qty float64, unitID string) RecipeComponent {
	return RecipeComponent{Item: &InventoryItemComponent{ItemID: itemID, Qty: qty, UnitID: unitID}}
}

func subComp(recipeID string, qty float64) RecipeComponent {
	return RecipeComponent{SubRecipe: &SubRecipeComponent{RecipeID: recipeID, Qty: qty}}
}

func (f *fakeStore) GetRecipe(ctx context.Context, recipeID, tenantID string) (*Recipe, error) {
	f.recipeCalls.Add(1)
	if err := f.failOn["GetRecipe"]; err != nil {
		return nil, err
	}
	r, ok := f.recipes[recipeID]
	if !ok || r.TenantID != tenantID {
		return nil, ErrRecipeNotFound
	}
	return &r, nil
}

func (f *fakeStore) GetRecipeComponents(ctx context.Context, recipeID string) ([]RecipeComponent, error) {
	return f.components[recipeID], nil
}

func (f *fakeStore) GetInventoryItem(ctx context.Context, itemID string) (*InventoryItem, error) {
	if err := f.failOn["GetInventoryItem"]; err != nil {
		return nil, err
	}
	for _, it := range f.items {
		if it.ID == itemID {
			it := it
			return &it, nil
		}
	}
	return nil, ErrItemNotFound
}

func (f *fakeStore) GetUnitConversions(ctx context.Context) ([]UnitConversion, error) {
	f.conversionCalls.Add(1)
	return f.conversions, nil
}

func (f *fakeStore) GetInventoryItems(ctx context.Context, tenantID string) ([]InventoryItem, error) {
	f.catalogCalls.Add(1)
	if err := f.failOn["GetInventoryItems"]; err != nil {
		return nil, err
	}
	return f.items, nil
}

func (f *fakeStore) GetCategories(ctx context.Context, tenantID string) ([]Category, error) {
	return f.categories, nil
}

func (f *fakeStore) GetUnits(ctx context.Context) ([]Unit, error) {
	if err := f.failOn["GetUnits"]; err != nil {
		return nil, err
	}
	return f.units, nil
}

func (f *fakeStore) GetStore(ctx context.Context, storeID string) (*Store, error) {
	s, ok := f.stores[storeID]
	if !ok {
		return nil, ErrStoreNotFound
	}
	return &s, nil
}

func (f *fakeStore) GetInventoryCount(ctx context.Context, countID string) (*InventoryCount, error) {
	c, ok := f.counts[countID]
	if !ok {
		return nil, ErrCountNotFound
	}
	return &c, nil
}

func (f *fakeStore) GetLatestInventoryCount(ctx context.Context, tenantID, storeID string) (*InventoryCount, error) {
	var found []InventoryCount
	for _, c := range f.counts {
		if c.TenantID == tenantID && c.StoreID == storeID {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return nil, ErrCountNotFound
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CountDate.After(found[j].CountDate) })
	return &found[0], nil
}

func (f *fakeStore) GetInventoryCountLines(ctx context.Context, countID string) ([]InventoryCountLine, error) {
	return f.countLines, nil
}

func (f *fakeStore) GetReceiptLinesForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]ReceiptLine, error) {
	return f.receipts, nil
}

func (f *fakeStore) GetCompletedTransfersForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]TransferLine, error) {
	return f.transfers, nil
}

func (f *fakeStore) GetWasteLogsForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]WasteLog, error) {
	return f.waste, nil
}

func (f *fakeStore) GetTheoreticalUsageForStore(ctx context.Context, tenantID, storeID string, after time.Time) ([]TheoreticalUsageLine, error) {
	return f.theoretical, nil
}

func (f *fakeStore) GetTheoreticalUsageLines(ctx context.Context, runID string) ([]TheoreticalUsageLine, error) {
	var out []TheoreticalUsageLine
	for _, l := range f.theoretical {
		if l.RunID == runID {
			out = append(out, l)
		}
	}
	if out == nil {
		return nil, ErrRunNotFound
	}
	return out, nil
}

// MockStore はテスト用の書き込みストアモック
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateTheoreticalUsageRun(ctx context.Context, run *TheoreticalUsageRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockStore) CreateTheoreticalUsageLines(ctx context.Context, lines []TheoreticalUsageLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockStore) UpdateTheoreticalUsageRun(ctx context.Context, runID string, update RunUpdate) error {
	args := m.Called(ctx, runID, update)
	return args.Error(0)
}

func (m *MockStore) CreateInventoryItem(ctx context.Context, item *InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockStore) CreateVendorItem(ctx context.Context, item *VendorItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// WithinTx はモックの戻り値がnilの場合のみ fn を実行する
func (m *MockStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// testStorage は読み取りをフェイク、書き込みをモックに委譲する
type testStorage struct {
	*fakeStore
	*MockStore
}

var _ Storage = testStorage{}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

// MockPublisher はテスト用のイベント発行モック
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishRunFailed(ctx context.Context, event RunFailedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishVendorItemLinked(ctx context.Context, event VendorItemLinkedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
