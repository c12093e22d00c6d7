// Package inventory provides recipe costing, inventory ledger reconciliation and
// vendor catalog matching for multi-store restaurant operators.
package inventory

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem represents a raw ingredient or supply tracked in a tenant catalog
// テナントのカタログで管理される原材料・資材を表現
type InventoryItem struct {
	ID                  string    `json:"id" db:"id"`                                       // 在庫品目ID
	TenantID            string    `json:"tenant_id" db:"tenant_id"`                         // テナントID
	Name                string    `json:"name" db:"name"`                                   // 品目名
	SKU                 string    `json:"sku" db:"sku"`                                     // SKU（任意）
	CategoryID          *string   `json:"category_id" db:"category_id"`                     // カテゴリID（任意）
	CategoryName        string    `json:"category_name" db:"category_name"`                 // カテゴリ名
	BaseUnitID          string    `json:"base_unit_id" db:"base_unit_id"`                   // 基本単位
	PricePerUnit        float64   `json:"price_per_unit" db:"price_per_unit"`               // 基本単位あたり単価
	WeightedAverageCost float64   `json:"weighted_average_cost" db:"weighted_average_cost"` // 加重平均原価
	YieldPercent        float64   `json:"yield_percent" db:"yield_percent"`                 // 歩留まり率（0〜100）
	ParLevel            float64   `json:"par_level" db:"par_level"`                         // 適正在庫
	ReorderLevel        float64   `json:"reorder_level" db:"reorder_level"`                 // 発注点
	IsActive            bool      `json:"is_active" db:"is_active"`                         // アクティブ状態
	CreatedAt           time.Time `json:"created_at" db:"created_at"`                       // 作成日時
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`                       // 更新日時
}

// CostBasis returns the per-unit cost used for valuation
// 評価に使用する単位原価を返す（加重平均原価が未設定なら単価）
func (i *InventoryItem) CostBasis() float64 {
	if i.WeightedAverageCost > 0 {
		return i.WeightedAverageCost
	}
	return i.PricePerUnit
}

// Category represents a tenant-defined item category
// テナント定義の品目カテゴリを表現
type Category struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
}

// Unit represents a global unit of measure
// 全テナント共通の単位を表現
type Unit struct {
	ID           string `json:"id" db:"id"`                     // 単位ID
	Name         string `json:"name" db:"name"`                 // 単位名
	Abbreviation string `json:"abbreviation" db:"abbreviation"` // 略称
}

// UnitConversion is a directed edge meaning to = from * Factor
// 換算エッジ（to = from * Factor）
type UnitConversion struct {
	FromUnitID string  `json:"from_unit_id" db:"from_unit_id"`
	ToUnitID   string  `json:"to_unit_id" db:"to_unit_id"`
	Factor     float64 `json:"factor" db:"factor"`
}

// Recipe is a named, tenant-scoped component tree
// テナント単位のレシピ（構成要素ツリーの名前付きエイリアス）
type Recipe struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ComponentType distinguishes the two recipe component variants
// レシピ構成要素の種別
type ComponentType string

const (
	ComponentTypeInventoryItem ComponentType = "inventory_item" // 原材料（葉）
	ComponentTypeRecipe        ComponentType = "recipe"         // サブレシピ（内部ノード）
)

// RecipeComponent is one line of a recipe. Exactly one of Item or SubRecipe is set.
// レシピの構成行。Item と SubRecipe のどちらか一方のみ設定される
type RecipeComponent struct {
	ID        string                  `json:"id"`
	RecipeID  string                  `json:"recipe_id"`
	Item      *InventoryItemComponent `json:"item,omitempty"`
	SubRecipe *SubRecipeComponent     `json:"sub_recipe,omitempty"`
}

// InventoryItemComponent requires Qty of an inventory item, expressed in UnitID
// 原材料を UnitID 単位で Qty 使用する
type InventoryItemComponent struct {
	ItemID string  `json:"item_id"`
	Qty    float64 `json:"qty"`
	UnitID string  `json:"unit_id"`
}

// SubRecipeComponent requires Qty units of another recipe per unit of the parent
// 親レシピ1単位あたり別レシピを Qty 使用する
type SubRecipeComponent struct {
	RecipeID string  `json:"recipe_id"`
	Qty      float64 `json:"qty"`
	UnitID   string  `json:"unit_id"`
}

// Type reports which variant the component carries
// 構成要素の種別を返す
func (c RecipeComponent) Type() ComponentType {
	if c.SubRecipe != nil {
		return ComponentTypeRecipe
	}
	return ComponentTypeInventoryItem
}

// Store represents a restaurant location owned by a tenant
// テナントが所有する店舗を表現
type Store struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
}

// InventoryCount is a point-in-time physical count for a store
// 店舗の実地棚卸（時点）
type InventoryCount struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	StoreID   string    `json:"store_id" db:"store_id"`
	CountDate time.Time `json:"count_date" db:"count_date"`
}

// InventoryCountLine is one counted quantity; several lines per item are summed
// 棚卸明細（同一品目の複数ロケーション分は合算）
type InventoryCountLine struct {
	CountID         string  `json:"count_id" db:"count_id"`
	InventoryItemID string  `json:"inventory_item_id" db:"inventory_item_id"`
	Location        string  `json:"location" db:"location"`
	Quantity        float64 `json:"quantity" db:"quantity"`
}

// ReceiptStatus is the lifecycle state of a goods receipt
// 入荷ステータス
type ReceiptStatus string

const (
	ReceiptStatusDraft     ReceiptStatus = "draft"
	ReceiptStatusLocked    ReceiptStatus = "locked"
	ReceiptStatusCompleted ReceiptStatus = "completed"
)

// ReceiptLine is a received quantity already resolved to its inventory item
// 入荷明細（仕入先品目は在庫品目に解決済み）
type ReceiptLine struct {
	ReceiptID            string        `json:"receipt_id" db:"receipt_id"`
	PurchaseOrderID      string        `json:"purchase_order_id" db:"purchase_order_id"`
	TenantID             string        `json:"tenant_id" db:"tenant_id"`
	StoreID              string        `json:"store_id" db:"store_id"`
	Status               ReceiptStatus `json:"status" db:"status"`
	ExpectedDeliveryDate *time.Time    `json:"expected_delivery_date" db:"expected_delivery_date"` // 発注書の納品予定日
	ReceivedAt           time.Time     `json:"received_at" db:"received_at"`                       // 実入荷日時
	VendorItemID         string        `json:"vendor_item_id" db:"vendor_item_id"`
	InventoryItemID      string        `json:"inventory_item_id" db:"inventory_item_id"`
	Quantity             float64       `json:"quantity" db:"quantity"` // 基本単位
	UnitCost             float64       `json:"unit_cost" db:"unit_cost"`
}

// DeliveryDate returns the expected delivery date, falling back to the receipt timestamp
// 納品日（予定日がなければ実入荷日時）
func (r ReceiptLine) DeliveryDate() time.Time {
	if r.ExpectedDeliveryDate != nil {
		return *r.ExpectedDeliveryDate
	}
	return r.ReceivedAt
}

// IsPosted reports whether the receipt counts toward the ledger
// 台帳に計上される入荷か
func (r ReceiptLine) IsPosted() bool {
	return r.Status == ReceiptStatusLocked || r.Status == ReceiptStatusCompleted
}

// TransferStatus is the lifecycle state of a transfer order
// 店舗間移動ステータス
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusShipped   TransferStatus = "shipped"
	TransferStatusCompleted TransferStatus = "completed"
)

// TransferLine is one item line of an inter-store transfer order
// 店舗間移動の明細
type TransferLine struct {
	TransferOrderID string         `json:"transfer_order_id" db:"transfer_order_id"`
	TenantID        string         `json:"tenant_id" db:"tenant_id"`
	FromStoreID     string         `json:"from_store_id" db:"from_store_id"`
	ToStoreID       string         `json:"to_store_id" db:"to_store_id"`
	Status          TransferStatus `json:"status" db:"status"`
	CompletedAt     *time.Time     `json:"completed_at" db:"completed_at"`
	InventoryItemID string         `json:"inventory_item_id" db:"inventory_item_id"`
	ShippedQty      float64        `json:"shipped_qty" db:"shipped_qty"`
}

// WasteType distinguishes raw-item waste from finished-recipe waste
// 廃棄種別
type WasteType string

const (
	WasteTypeInventory WasteType = "inventory" // 原材料の廃棄
	WasteTypeRecipe    WasteType = "recipe"    // 完成品の廃棄
)

// WasteLog is a recorded loss event
// 廃棄記録
type WasteLog struct {
	ID              string    `json:"id" db:"id"`
	TenantID        string    `json:"tenant_id" db:"tenant_id"`
	StoreID         string    `json:"store_id" db:"store_id"`
	Type            WasteType `json:"type" db:"type"`
	InventoryItemID string    `json:"inventory_item_id,omitempty" db:"inventory_item_id"`
	RecipeID        string    `json:"recipe_id,omitempty" db:"recipe_id"`
	Quantity        float64   `json:"quantity" db:"quantity"`
	ReasonCode      string    `json:"reason_code" db:"reason_code"`
	LoggedAt        time.Time `json:"logged_at" db:"logged_at"`
}

// RunStatus is the state of a theoretical usage run
// 理論使用量計算ランの状態
type RunStatus string

const (
	RunStatusProcessing RunStatus = "processing" // 処理中
	RunStatusCompleted  RunStatus = "completed"  // 完了
	RunStatusFailed     RunStatus = "failed"     // 失敗
)

// TheoreticalUsageRun is the persisted result of one explosion pass for a store/date
// 店舗・営業日単位の理論使用量計算結果
type TheoreticalUsageRun struct {
	ID                   string     `json:"id" db:"id"`
	TenantID             string     `json:"tenant_id" db:"tenant_id"`
	StoreID              string     `json:"store_id" db:"store_id"`
	BusinessDate         time.Time  `json:"business_date" db:"business_date"`
	UploadBatchID        string     `json:"upload_batch_id" db:"upload_batch_id"`
	Status               RunStatus  `json:"status" db:"status"`
	TotalTheoreticalCost float64    `json:"total_theoretical_cost" db:"total_theoretical_cost"`
	TotalQuantitySold    float64    `json:"total_quantity_sold" db:"total_quantity_sold"`
	LineCount            int        `json:"line_count" db:"line_count"`
	ErrorMessage         string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt            time.Time  `json:"started_at" db:"started_at"`
	CompletedAt          *time.Time `json:"completed_at" db:"completed_at"`
	FailedAt             *time.Time `json:"failed_at" db:"failed_at"`
}

// RunUpdate carries a status transition and recomputed totals
// ランの状態遷移と再計算済み合計
type RunUpdate struct {
	Status               RunStatus
	TotalTheoreticalCost float64
	TotalQuantitySold    float64
	LineCount            int
	ErrorMessage         string
	CompletedAt          *time.Time
	FailedAt             *time.Time
}

// TheoreticalUsageLine aggregates required quantity and cost of one item within a run
// ラン内の1品目分の理論使用量と原価
type TheoreticalUsageLine struct {
	ID                  string        `json:"id" db:"id"`
	RunID               string        `json:"run_id" db:"run_id"`
	TenantID            string        `json:"tenant_id" db:"tenant_id"`
	StoreID             string        `json:"store_id" db:"store_id"`
	BusinessDate        time.Time     `json:"business_date" db:"business_date"`
	RunStatus           RunStatus     `json:"run_status,omitempty" db:"run_status"`
	InventoryItemID     string        `json:"inventory_item_id" db:"inventory_item_id"`
	RequiredQtyBaseUnit float64       `json:"required_qty_base_unit" db:"required_qty_base_unit"`
	CostAtSale          float64       `json:"cost_at_sale" db:"cost_at_sale"`
	SourceTrace         []SourceTrace `json:"source_trace" db:"source_trace"`
}

// MenuItemSale is the quantity sold of one menu item in a sales upload
// 売上アップロード内のメニュー品目ごとの販売数
type MenuItemSale struct {
	MenuItemID   string  `json:"menu_item_id"`
	MenuItemName string  `json:"menu_item_name"`
	RecipeID     string  `json:"recipe_id"`
	QuantitySold float64 `json:"quantity_sold"`
}

// SourceTrace records which menu item contributed to an ingredient line
// 原材料使用量の発生元メニュー品目
type SourceTrace struct {
	MenuItemID     string  `json:"menu_item_id"`
	MenuItemName   string  `json:"menu_item_name"`
	SoldQty        float64 `json:"sold_qty"`
	ContributedQty float64 `json:"contributed_qty"`
}

// IngredientUsage is the exploded base-unit quantity and cost of one inventory item
// 展開後の原材料使用量（基本単位）と原価
type IngredientUsage struct {
	InventoryItemID     string        `json:"inventory_item_id"`
	ItemName            string        `json:"item_name"`
	RequiredQtyBaseUnit float64       `json:"required_qty_base_unit"`
	CostAtSale          float64       `json:"cost_at_sale"`
	SourceTrace         []SourceTrace `json:"source_trace"`
}

// VendorProduct is a transient vendor catalog row from an order guide import
// 発注ガイド取込時の仕入先商品行（未登録）
type VendorProduct struct {
	VendorSKU    string  `json:"vendor_sku"`
	Name         string  `json:"name"`
	CategoryCode string  `json:"category_code"`
	CaseSize     float64 `json:"case_size"`
	Unit         string  `json:"unit"`
	Price        float64 `json:"price"`
}

// VendorItem links a vendor SKU to exactly one inventory item
// 仕入先SKUと在庫品目の紐付け
type VendorItem struct {
	ID              string    `json:"id" db:"id"`
	TenantID        string    `json:"tenant_id" db:"tenant_id"`
	VendorID        string    `json:"vendor_id" db:"vendor_id"`
	VendorSKU       string    `json:"vendor_sku" db:"vendor_sku"`
	InventoryItemID string    `json:"inventory_item_id" db:"inventory_item_id"`
	Name            string    `json:"name" db:"name"`
	CaseSize        float64   `json:"case_size" db:"case_size"`
	Unit            string    `json:"unit" db:"unit"`
	Price           float64   `json:"price" db:"price"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Confidence is a coarse bucket summarising a match score
// 照合スコアの信頼度区分
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// MatchResult is the best catalog candidate for a vendor product
// 仕入先商品に対する最良の候補
type MatchResult struct {
	InventoryItemID *string    `json:"inventory_item_id"`
	Confidence      Confidence `json:"confidence"`
	Score           float64    `json:"score"`
	NameScore       float64    `json:"name_score"`
	SKUScore        float64    `json:"sku_score"`
	CategoryScore   float64    `json:"category_score"`
	Reason          string     `json:"reason"`
}

// UsageRow is the actual usage of one item between two counts
// 2回の棚卸間の実使用量
type UsageRow struct {
	InventoryItemID   string  `json:"inventory_item_id"`
	ItemName          string  `json:"item_name"`
	PreviousQty       float64 `json:"previous_qty"`
	ReceivedQty       float64 `json:"received_qty"`
	TransferredOutQty float64 `json:"transferred_out_qty"`
	CurrentQty        float64 `json:"current_qty"`
	Usage             float64 `json:"usage"`
	IsNegativeUsage   bool    `json:"is_negative_usage"`
	UnitCost          float64 `json:"unit_cost"`
	UsageCost         float64 `json:"usage_cost"`
}

// OnHandRow is the projected quantity of one item since the last count
// 最終棚卸以降の推定在庫
type OnHandRow struct {
	InventoryItemID     string  `json:"inventory_item_id"`
	ItemName            string  `json:"item_name"`
	LastCountQty        float64 `json:"last_count_qty"`
	ReceivedQty         float64 `json:"received_qty"`
	TransferredInQty    float64 `json:"transferred_in_qty"`
	WasteQty            float64 `json:"waste_qty"`
	TheoreticalUsageQty float64 `json:"theoretical_usage_qty"`
	TransferredOutQty   float64 `json:"transferred_out_qty"`
	SignedOnHand        float64 `json:"signed_on_hand"` // 診断用の符号付き値
	OnHand              float64 `json:"on_hand"`        // 表示用（0未満は0）
}

// OnHandReport is the estimated on-hand for a store anchored on its latest count
// 最新棚卸を起点とした店舗の推定在庫
type OnHandReport struct {
	TenantID    string      `json:"tenant_id"`
	StoreID     string      `json:"store_id"`
	CountID     string      `json:"count_id"`
	CountDate   time.Time   `json:"count_date"`
	Rows        []OnHandRow `json:"rows"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// NewRunID generates a new theoretical usage run ID
// 新しいランIDを生成
func NewRunID() string {
	return uuid.New().String()
}

// NewID generates a new record ID
// 新しいレコードIDを生成
func NewID() string {
	return uuid.New().String()
}
