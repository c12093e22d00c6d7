package inventory

import (
	"context"
	"time"
)

// CostEngine defines the core interface for recipe costing and ledger reconciliation
// 原価計算と在庫台帳照合のコアインターフェースを定義
type CostEngine interface {
	// レシピ展開 - Recipe explosion
	Explode(ctx context.Context, recipeID string, salesQty float64, tenantID string) ([]IngredientUsage, error)
	ExplodeMenuItem(ctx context.Context, sale MenuItemSale, tenantID string) ([]IngredientUsage, error)

	// 理論使用量 - Theoretical usage
	RunTheoreticalUsage(ctx context.Context, req RunRequest) (*TheoreticalUsageRun, error)

	// 台帳照合 - Ledger reconciliation
	UsageBetweenCounts(ctx context.Context, tenantID, storeID, previousCountID, currentCountID string) ([]UsageRow, error)
	EstimatedOnHand(ctx context.Context, tenantID, storeID string) (*OnHandReport, error)
	VarianceBetweenCounts(ctx context.Context, tenantID, storeID, previousCountID, currentCountID string, runIDs []string) (*VarianceReport, error)
}

// VendorCatalog defines interface for vendor item matching and order guide import
// 仕入先品目照合と発注ガイド取込のインターフェースを定義
type VendorCatalog interface {
	FindBestMatch(ctx context.Context, product VendorProduct, tenantID string) (MatchResult, error)
	BatchMatch(ctx context.Context, products []VendorProduct, tenantID string) (map[string]MatchResult, error)
	ProcessOrderGuide(ctx context.Context, tenantID, vendorID string, products []VendorProduct) (*OrderGuideSummary, error)
}

// RecipeStore provides read access to the recipe graph
// レシピグラフの読み取りアクセスを提供
type RecipeStore interface {
	GetRecipe(ctx context.Context, recipeID, tenantID string) (*Recipe, error)
	GetRecipeComponents(ctx context.Context, recipeID string) ([]RecipeComponent, error)
	GetInventoryItem(ctx context.Context, itemID string) (*InventoryItem, error)
	GetUnitConversions(ctx context.Context) ([]UnitConversion, error)
}

// CatalogStore provides read access to a tenant catalog
// テナントカタログの読み取りアクセスを提供
type CatalogStore interface {
	GetInventoryItems(ctx context.Context, tenantID string) ([]InventoryItem, error)
	GetCategories(ctx context.Context, tenantID string) ([]Category, error)
	GetUnits(ctx context.Context) ([]Unit, error)
}

// LedgerStore provides the records needed for reconciliation
// 台帳照合に必要な記録を提供
type LedgerStore interface {
	GetStore(ctx context.Context, storeID string) (*Store, error)
	GetInventoryCount(ctx context.Context, countID string) (*InventoryCount, error)
	GetLatestInventoryCount(ctx context.Context, tenantID, storeID string) (*InventoryCount, error)
	GetInventoryCountLines(ctx context.Context, countID string) ([]InventoryCountLine, error)
	GetReceiptLinesForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]ReceiptLine, error)
	GetCompletedTransfersForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]TransferLine, error)
	GetWasteLogsForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]WasteLog, error)
	GetTheoreticalUsageForStore(ctx context.Context, tenantID, storeID string, after time.Time) ([]TheoreticalUsageLine, error)
	GetTheoreticalUsageLines(ctx context.Context, runID string) ([]TheoreticalUsageLine, error)
}

// RunWriter persists theoretical usage runs
// 理論使用量ランを永続化
type RunWriter interface {
	CreateTheoreticalUsageRun(ctx context.Context, run *TheoreticalUsageRun) error
	CreateTheoreticalUsageLines(ctx context.Context, lines []TheoreticalUsageLine) error
	UpdateTheoreticalUsageRun(ctx context.Context, runID string, update RunUpdate) error
}

// CatalogWriter persists catalog entries created from order guides
// 発注ガイドから作成されるカタログ項目を永続化
type CatalogWriter interface {
	CreateInventoryItem(ctx context.Context, item *InventoryItem) error
	CreateVendorItem(ctx context.Context, item *VendorItem) error
}

// TxStore is the write surface available inside a transaction
// トランザクション内で利用可能な書き込み操作
type TxStore interface {
	RunWriter
	CatalogWriter
}

// Transactor runs fn inside one storage transaction; a non-nil error rolls back
// fn を単一トランザクションで実行（エラー時はロールバック）
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error
}

// Storage defines the interface for data persistence layer
// データ永続化層のインターフェースを定義
type Storage interface {
	RecipeStore
	CatalogStore
	LedgerStore
	RunWriter
	CatalogWriter
	Transactor

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher defines interface for publishing costing events
// 原価計算イベント発行のインターフェースを定義
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error
	PublishRunFailed(ctx context.Context, event RunFailedEvent) error
	PublishVendorItemLinked(ctx context.Context, event VendorItemLinkedEvent) error
}

// RunCompletedEvent represents a completed theoretical usage run
// 理論使用量ラン完了イベントを表現
type RunCompletedEvent struct {
	RunID                string    `json:"run_id"`
	TenantID             string    `json:"tenant_id"`
	StoreID              string    `json:"store_id"`
	BusinessDate         time.Time `json:"business_date"`
	LineCount            int       `json:"line_count"`
	TotalTheoreticalCost float64   `json:"total_theoretical_cost"`
	Timestamp            time.Time `json:"timestamp"`
}

// RunFailedEvent represents a failed theoretical usage run
// 理論使用量ラン失敗イベントを表現
type RunFailedEvent struct {
	RunID     string    `json:"run_id"`
	TenantID  string    `json:"tenant_id"`
	StoreID   string    `json:"store_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// VendorItemLinkedEvent represents a vendor SKU linked to an inventory item
// 仕入先SKUの紐付けイベントを表現
type VendorItemLinkedEvent struct {
	TenantID        string     `json:"tenant_id"`
	VendorID        string     `json:"vendor_id"`
	VendorSKU       string     `json:"vendor_sku"`
	InventoryItemID string     `json:"inventory_item_id"`
	Confidence      Confidence `json:"confidence"`
	Created         bool       `json:"created"` // 新規品目として作成されたか
	Timestamp       time.Time  `json:"timestamp"`
}
