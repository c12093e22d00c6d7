package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory"
)

// 一括INSERT時の1文あたりの最大行数（PostgreSQLのパラメータ上限 65535 未満に収める）
const lineBatchSize = 1000

const uniqueViolation = "23505"

// PoolConfig holds connection pool settings
// 接続プール設定
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns the default pool settings
// デフォルトの接続プール設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgreSQLStorage implements the Storage interface using PostgreSQL
// PostgreSQLを使用したStorageインターフェースの実装
type PostgreSQLStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ inventory.Storage = (*PostgreSQLStorage)(nil)

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgreSQLStorage(ctx context.Context, dsn string, pool PoolConfig, logger *zap.Logger) (*PostgreSQLStorage, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	if pool.MaxOpenConns <= 0 {
		pool = DefaultPoolConfig()
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return NewPostgreSQLStorageFromDB(db, logger), nil
}

// NewPostgreSQLStorageFromDB wraps an existing connection pool
// 既存の接続プールからストレージを作成
func NewPostgreSQLStorageFromDB(db *sqlx.DB, logger *zap.Logger) *PostgreSQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgreSQLStorage{db: db, logger: logger}
}

// WithinTx runs fn in one transaction; fn's error or a panic rolls it back
// fn を単一トランザクションで実行（エラー・パニック時はロールバック）
func (s *PostgreSQLStorage) WithinTx(ctx context.Context, fn func(tx inventory.TxStore) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: トランザクション開始に失敗しました: %v", inventory.ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(writer{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("ロールバックに失敗しました", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: コミットに失敗しました: %v", inventory.ErrTransactionFailed, err)
	}
	return nil
}

// レシピグラフ

// GetRecipe retrieves a recipe scoped to a tenant
// テナント内のレシピを取得
func (s *PostgreSQLStorage) GetRecipe(ctx context.Context, recipeID, tenantID string) (*inventory.Recipe, error) {
	query := `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM recipes
		WHERE id = $1 AND tenant_id = $2`

	recipe := &inventory.Recipe{}
	if err := s.db.GetContext(ctx, recipe, query, recipeID, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrRecipeNotFound
		}
		return nil, fmt.Errorf("レシピ取得に失敗しました: %w", err)
	}
	return recipe, nil
}

// componentRow is the flat shape of a recipe_components row
type componentRow struct {
	ID              string         `db:"id"`
	RecipeID        string         `db:"recipe_id"`
	ComponentType   string         `db:"component_type"`
	InventoryItemID sql.NullString `db:"inventory_item_id"`
	SubRecipeID     sql.NullString `db:"sub_recipe_id"`
	Quantity        float64        `db:"quantity"`
	UnitID          sql.NullString `db:"unit_id"`
}

func (r componentRow) toComponent() inventory.RecipeComponent {
	c := inventory.RecipeComponent{ID: r.ID, RecipeID: r.RecipeID}
	if inventory.ComponentType(r.ComponentType) == inventory.ComponentTypeRecipe {
		c.SubRecipe = &inventory.SubRecipeComponent{RecipeID: r.SubRecipeID.String, Qty: r.Quantity, UnitID: r.UnitID.String}
	} else {
		c.Item = &inventory.InventoryItemComponent{ItemID: r.InventoryItemID.String, Qty: r.Quantity, UnitID: r.UnitID.String}
	}
	return c
}

// GetRecipeComponents retrieves the components of a recipe in definition order
// レシピの構成要素を定義順に取得
func (s *PostgreSQLStorage) GetRecipeComponents(ctx context.Context, recipeID string) ([]inventory.RecipeComponent, error) {
	query := `
		SELECT id, recipe_id, component_type, inventory_item_id, sub_recipe_id, quantity, unit_id
		FROM recipe_components
		WHERE recipe_id = $1
		ORDER BY sort_order, id`

	var rows []componentRow
	if err := s.db.SelectContext(ctx, &rows, query, recipeID); err != nil {
		return nil, fmt.Errorf("レシピ構成要素取得に失敗しました: %w", err)
	}
	components := make([]inventory.RecipeComponent, len(rows))
	for i, r := range rows {
		components[i] = r.toComponent()
	}
	return components, nil
}

const itemColumns = `
		i.id, i.tenant_id, i.name, i.sku, i.category_id,
		COALESCE(c.name, i.category_name) AS category_name,
		i.base_unit_id, i.price_per_unit, i.weighted_average_cost, i.yield_percent,
		i.par_level, i.reorder_level, i.is_active, i.created_at, i.updated_at`

// GetInventoryItem retrieves an inventory item by ID
// 在庫品目をIDで取得
func (s *PostgreSQLStorage) GetInventoryItem(ctx context.Context, itemID string) (*inventory.InventoryItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM inventory_items i
		LEFT JOIN categories c ON c.id = i.category_id
		WHERE i.id = $1`

	item := &inventory.InventoryItem{}
	if err := s.db.GetContext(ctx, item, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrItemNotFound
		}
		return nil, fmt.Errorf("在庫品目取得に失敗しました: %w", err)
	}
	return item, nil
}

// GetUnitConversions retrieves the global conversion edges
// 全単位換算エッジを取得
func (s *PostgreSQLStorage) GetUnitConversions(ctx context.Context) ([]inventory.UnitConversion, error) {
	var conversions []inventory.UnitConversion
	if err := s.db.SelectContext(ctx, &conversions, `SELECT from_unit_id, to_unit_id, factor FROM unit_conversions`); err != nil {
		return nil, fmt.Errorf("単位換算取得に失敗しました: %w", err)
	}
	return conversions, nil
}

// GetUnits retrieves all units of measure
// 全単位を取得
func (s *PostgreSQLStorage) GetUnits(ctx context.Context) ([]inventory.Unit, error) {
	var units []inventory.Unit
	if err := s.db.SelectContext(ctx, &units, `SELECT id, name, abbreviation FROM units ORDER BY id`); err != nil {
		return nil, fmt.Errorf("単位取得に失敗しました: %w", err)
	}
	return units, nil
}

// カタログ

// GetInventoryItems retrieves all items of a tenant, including inactive ones
// テナントの全在庫品目を取得（非アクティブ含む）
func (s *PostgreSQLStorage) GetInventoryItems(ctx context.Context, tenantID string) ([]inventory.InventoryItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM inventory_items i
		LEFT JOIN categories c ON c.id = i.category_id
		WHERE i.tenant_id = $1
		ORDER BY i.name, i.id`

	var items []inventory.InventoryItem
	if err := s.db.SelectContext(ctx, &items, query, tenantID); err != nil {
		return nil, fmt.Errorf("在庫品目一覧取得に失敗しました: %w", err)
	}
	return items, nil
}

// GetCategories retrieves the categories of a tenant
// テナントのカテゴリを取得
func (s *PostgreSQLStorage) GetCategories(ctx context.Context, tenantID string) ([]inventory.Category, error) {
	var categories []inventory.Category
	if err := s.db.SelectContext(ctx, &categories, `SELECT id, tenant_id, name FROM categories WHERE tenant_id = $1 ORDER BY name`, tenantID); err != nil {
		return nil, fmt.Errorf("カテゴリ取得に失敗しました: %w", err)
	}
	return categories, nil
}

// 店舗台帳

// GetStore retrieves a store by ID
// 店舗をIDで取得
func (s *PostgreSQLStorage) GetStore(ctx context.Context, storeID string) (*inventory.Store, error) {
	store := &inventory.Store{}
	if err := s.db.GetContext(ctx, store, `SELECT id, tenant_id, name FROM stores WHERE id = $1`, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrStoreNotFound
		}
		return nil, fmt.Errorf("店舗取得に失敗しました: %w", err)
	}
	return store, nil
}

// GetInventoryCount retrieves a count by ID
// 棚卸記録をIDで取得
func (s *PostgreSQLStorage) GetInventoryCount(ctx context.Context, countID string) (*inventory.InventoryCount, error) {
	count := &inventory.InventoryCount{}
	err := s.db.GetContext(ctx, count, `SELECT id, tenant_id, store_id, count_date FROM inventory_counts WHERE id = $1`, countID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrCountNotFound
		}
		return nil, fmt.Errorf("棚卸記録取得に失敗しました: %w", err)
	}
	return count, nil
}

// GetLatestInventoryCount retrieves the most recent count of a store
// 店舗の最新棚卸を取得
func (s *PostgreSQLStorage) GetLatestInventoryCount(ctx context.Context, tenantID, storeID string) (*inventory.InventoryCount, error) {
	query := `
		SELECT id, tenant_id, store_id, count_date
		FROM inventory_counts
		WHERE tenant_id = $1 AND store_id = $2
		ORDER BY count_date DESC, id DESC
		LIMIT 1`

	count := &inventory.InventoryCount{}
	if err := s.db.GetContext(ctx, count, query, tenantID, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrCountNotFound
		}
		return nil, fmt.Errorf("最新棚卸取得に失敗しました: %w", err)
	}
	return count, nil
}

// GetInventoryCountLines retrieves the lines of a count
// 棚卸明細を取得
func (s *PostgreSQLStorage) GetInventoryCountLines(ctx context.Context, countID string) ([]inventory.InventoryCountLine, error) {
	query := `
		SELECT count_id, inventory_item_id, location, quantity
		FROM inventory_count_lines
		WHERE count_id = $1
		ORDER BY id`

	var lines []inventory.InventoryCountLine
	if err := s.db.SelectContext(ctx, &lines, query, countID); err != nil {
		return nil, fmt.Errorf("棚卸明細取得に失敗しました: %w", err)
	}
	return lines, nil
}

// GetReceiptLinesForStore retrieves posted receipt lines delivered within [from, to].
// The delivery date is the purchase order's expected date, else the receipt time.
// 期間内に納品された計上済み入荷明細を取得
func (s *PostgreSQLStorage) GetReceiptLinesForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]inventory.ReceiptLine, error) {
	query := `
		SELECT r.id AS receipt_id,
		       COALESCE(r.purchase_order_id, '') AS purchase_order_id,
		       r.tenant_id, r.store_id, r.status,
		       po.expected_delivery_date, r.received_at,
		       rl.vendor_item_id, vi.inventory_item_id, rl.quantity, rl.unit_cost
		FROM receipt_lines rl
		JOIN receipts r ON r.id = rl.receipt_id
		JOIN vendor_items vi ON vi.id = rl.vendor_item_id AND vi.tenant_id = r.tenant_id
		LEFT JOIN purchase_orders po ON po.id = r.purchase_order_id
		WHERE r.tenant_id = $1 AND r.store_id = $2
		  AND r.status IN ('locked', 'completed')
		  AND COALESCE(po.expected_delivery_date, r.received_at) BETWEEN $3 AND $4
		ORDER BY r.received_at, rl.id`

	var lines []inventory.ReceiptLine
	if err := s.db.SelectContext(ctx, &lines, query, tenantID, storeID, from, to); err != nil {
		return nil, fmt.Errorf("入荷明細取得に失敗しました: %w", err)
	}
	return lines, nil
}

// GetCompletedTransfersForStore retrieves completed transfer lines into or out of a store
// 店舗に出入りした完了済み移動明細を取得
func (s *PostgreSQLStorage) GetCompletedTransfersForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]inventory.TransferLine, error) {
	query := `
		SELECT t.id AS transfer_order_id, t.tenant_id, t.from_store_id, t.to_store_id,
		       t.status, t.completed_at, l.inventory_item_id, l.shipped_qty
		FROM transfer_order_lines l
		JOIN transfer_orders t ON t.id = l.transfer_order_id
		WHERE t.tenant_id = $1
		  AND (t.from_store_id = $2 OR t.to_store_id = $2)
		  AND t.status = 'completed'
		  AND t.completed_at BETWEEN $3 AND $4
		ORDER BY t.completed_at, l.id`

	var lines []inventory.TransferLine
	if err := s.db.SelectContext(ctx, &lines, query, tenantID, storeID, from, to); err != nil {
		return nil, fmt.Errorf("店舗間移動取得に失敗しました: %w", err)
	}
	return lines, nil
}

// GetWasteLogsForStore retrieves waste logged within [from, to]
// 期間内の廃棄記録を取得
func (s *PostgreSQLStorage) GetWasteLogsForStore(ctx context.Context, tenantID, storeID string, from, to time.Time) ([]inventory.WasteLog, error) {
	query := `
		SELECT id, tenant_id, store_id, type,
		       COALESCE(inventory_item_id, '') AS inventory_item_id,
		       COALESCE(recipe_id, '') AS recipe_id,
		       quantity, reason_code, logged_at
		FROM waste_logs
		WHERE tenant_id = $1 AND store_id = $2 AND logged_at BETWEEN $3 AND $4
		ORDER BY logged_at, id`

	var logs []inventory.WasteLog
	if err := s.db.SelectContext(ctx, &logs, query, tenantID, storeID, from, to); err != nil {
		return nil, fmt.Errorf("廃棄記録取得に失敗しました: %w", err)
	}
	return logs, nil
}

// lineRow is a theoretical_usage_lines row with its JSONB trace left encoded
type lineRow struct {
	ID                  string              `db:"id"`
	RunID               string              `db:"run_id"`
	TenantID            string              `db:"tenant_id"`
	StoreID             string              `db:"store_id"`
	BusinessDate        time.Time           `db:"business_date"`
	RunStatus           inventory.RunStatus `db:"run_status"`
	InventoryItemID     string              `db:"inventory_item_id"`
	RequiredQtyBaseUnit float64             `db:"required_qty_base_unit"`
	CostAtSale          float64             `db:"cost_at_sale"`
	SourceTrace         []byte              `db:"source_trace"`
}

func toLines(rows []lineRow) ([]inventory.TheoreticalUsageLine, error) {
	lines := make([]inventory.TheoreticalUsageLine, len(rows))
	for i, r := range rows {
		lines[i] = inventory.TheoreticalUsageLine{
			ID:                  r.ID,
			RunID:               r.RunID,
			TenantID:            r.TenantID,
			StoreID:             r.StoreID,
			BusinessDate:        r.BusinessDate,
			RunStatus:           r.RunStatus,
			InventoryItemID:     r.InventoryItemID,
			RequiredQtyBaseUnit: r.RequiredQtyBaseUnit,
			CostAtSale:          r.CostAtSale,
		}
		if len(r.SourceTrace) > 0 {
			if err := json.Unmarshal(r.SourceTrace, &lines[i].SourceTrace); err != nil {
				return nil, fmt.Errorf("発生元トレースの復元に失敗しました: %w", err)
			}
		}
	}
	return lines, nil
}

const lineColumns = `
		l.id, l.run_id, l.tenant_id, l.store_id, l.business_date, r.status AS run_status,
		l.inventory_item_id, l.required_qty_base_unit, l.cost_at_sale, l.source_trace`

// GetTheoreticalUsageForStore retrieves lines of completed runs with a business date after the given time
// 指定時点より後の営業日の完了済みラン明細を取得
func (s *PostgreSQLStorage) GetTheoreticalUsageForStore(ctx context.Context, tenantID, storeID string, after time.Time) ([]inventory.TheoreticalUsageLine, error) {
	query := `SELECT ` + lineColumns + `
		FROM theoretical_usage_lines l
		JOIN theoretical_usage_runs r ON r.id = l.run_id
		WHERE l.tenant_id = $1 AND l.store_id = $2
		  AND r.status = 'completed'
		  AND l.business_date > $3
		ORDER BY l.business_date, l.id`

	var rows []lineRow
	if err := s.db.SelectContext(ctx, &rows, query, tenantID, storeID, after); err != nil {
		return nil, fmt.Errorf("理論使用量取得に失敗しました: %w", err)
	}
	return toLines(rows)
}

// GetTheoreticalUsageLines retrieves the lines of one run; runs that are not
// completed yield no lines.
// ランの明細を取得（未完了のランは明細なし）
func (s *PostgreSQLStorage) GetTheoreticalUsageLines(ctx context.Context, runID string) ([]inventory.TheoreticalUsageLine, error) {
	var status inventory.RunStatus
	if err := s.db.GetContext(ctx, &status, `SELECT status FROM theoretical_usage_runs WHERE id = $1`, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrRunNotFound
		}
		return nil, fmt.Errorf("理論使用量ラン取得に失敗しました: %w", err)
	}
	if status != inventory.RunStatusCompleted {
		return []inventory.TheoreticalUsageLine{}, nil
	}

	query := `SELECT ` + lineColumns + `
		FROM theoretical_usage_lines l
		JOIN theoretical_usage_runs r ON r.id = l.run_id
		WHERE l.run_id = $1
		ORDER BY l.id`

	var rows []lineRow
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("理論使用量明細取得に失敗しました: %w", err)
	}
	return toLines(rows)
}

// 書き込み（トランザクション外）

// CreateTheoreticalUsageRun creates a run record
// ランを作成
func (s *PostgreSQLStorage) CreateTheoreticalUsageRun(ctx context.Context, run *inventory.TheoreticalUsageRun) error {
	return writer{q: s.db}.CreateTheoreticalUsageRun(ctx, run)
}

// CreateTheoreticalUsageLines inserts run lines
// ラン明細を登録
func (s *PostgreSQLStorage) CreateTheoreticalUsageLines(ctx context.Context, lines []inventory.TheoreticalUsageLine) error {
	return writer{q: s.db}.CreateTheoreticalUsageLines(ctx, lines)
}

// UpdateTheoreticalUsageRun applies a status transition to a run
// ランの状態を更新
func (s *PostgreSQLStorage) UpdateTheoreticalUsageRun(ctx context.Context, runID string, update inventory.RunUpdate) error {
	return writer{q: s.db}.UpdateTheoreticalUsageRun(ctx, runID, update)
}

// CreateInventoryItem creates a catalog item
// 在庫品目を作成
func (s *PostgreSQLStorage) CreateInventoryItem(ctx context.Context, item *inventory.InventoryItem) error {
	return writer{q: s.db}.CreateInventoryItem(ctx, item)
}

// CreateVendorItem links a vendor SKU to an inventory item
// 仕入先品目を作成
func (s *PostgreSQLStorage) CreateVendorItem(ctx context.Context, item *inventory.VendorItem) error {
	return writer{q: s.db}.CreateVendorItem(ctx, item)
}

// Ping checks the database connection
// データベース接続を確認
func (s *PostgreSQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続を閉じる
func (s *PostgreSQLStorage) Close() error {
	return s.db.Close()
}

// writer implements the write surface over a pool or a transaction
type writer struct {
	q sqlx.ExtContext
}

func (w writer) CreateTheoreticalUsageRun(ctx context.Context, run *inventory.TheoreticalUsageRun) error {
	query := `
		INSERT INTO theoretical_usage_runs
			(id, tenant_id, store_id, business_date, upload_batch_id, status,
			 total_theoretical_cost, total_quantity_sold, line_count, error_message,
			 started_at, completed_at, failed_at)
		VALUES
			(:id, :tenant_id, :store_id, :business_date, :upload_batch_id, :status,
			 :total_theoretical_cost, :total_quantity_sold, :line_count, :error_message,
			 :started_at, :completed_at, :failed_at)`

	if _, err := sqlx.NamedExecContext(ctx, w.q, query, run); err != nil {
		return fmt.Errorf("理論使用量ラン作成に失敗しました: %w", err)
	}
	return nil
}

func (w writer) CreateTheoreticalUsageLines(ctx context.Context, lines []inventory.TheoreticalUsageLine) error {
	if len(lines) == 0 {
		return nil
	}
	query := `
		INSERT INTO theoretical_usage_lines
			(id, run_id, tenant_id, store_id, business_date, inventory_item_id,
			 required_qty_base_unit, cost_at_sale, source_trace)
		VALUES
			(:id, :run_id, :tenant_id, :store_id, :business_date, :inventory_item_id,
			 :required_qty_base_unit, :cost_at_sale, :source_trace)`

	rows := make([]lineRow, len(lines))
	for i, l := range lines {
		trace := l.SourceTrace
		if trace == nil {
			trace = []inventory.SourceTrace{}
		}
		encoded, err := json.Marshal(trace)
		if err != nil {
			return fmt.Errorf("発生元トレースのエンコードに失敗しました: %w", err)
		}
		rows[i] = lineRow{
			ID:                  l.ID,
			RunID:               l.RunID,
			TenantID:            l.TenantID,
			StoreID:             l.StoreID,
			BusinessDate:        l.BusinessDate,
			InventoryItemID:     l.InventoryItemID,
			RequiredQtyBaseUnit: l.RequiredQtyBaseUnit,
			CostAtSale:          l.CostAtSale,
			SourceTrace:         encoded,
		}
	}

	for start := 0; start < len(rows); start += lineBatchSize {
		end := min(start+lineBatchSize, len(rows))
		if _, err := sqlx.NamedExecContext(ctx, w.q, query, rows[start:end]); err != nil {
			return fmt.Errorf("理論使用量明細登録に失敗しました: %w", err)
		}
	}
	return nil
}

func (w writer) UpdateTheoreticalUsageRun(ctx context.Context, runID string, update inventory.RunUpdate) error {
	query := `
		UPDATE theoretical_usage_runs
		SET status = $2,
		    total_theoretical_cost = $3,
		    total_quantity_sold = $4,
		    line_count = $5,
		    error_message = $6,
		    completed_at = $7,
		    failed_at = $8
		WHERE id = $1`

	result, err := w.q.ExecContext(ctx, query,
		runID,
		update.Status,
		update.TotalTheoreticalCost,
		update.TotalQuantitySold,
		update.LineCount,
		update.ErrorMessage,
		update.CompletedAt,
		update.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("理論使用量ラン更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return inventory.ErrRunNotFound
	}
	return nil
}

func (w writer) CreateInventoryItem(ctx context.Context, item *inventory.InventoryItem) error {
	query := `
		INSERT INTO inventory_items
			(id, tenant_id, name, sku, category_id, category_name, base_unit_id,
			 price_per_unit, weighted_average_cost, yield_percent, par_level, reorder_level,
			 is_active, created_at, updated_at)
		VALUES
			(:id, :tenant_id, :name, :sku, :category_id, :category_name, :base_unit_id,
			 :price_per_unit, :weighted_average_cost, :yield_percent, :par_level, :reorder_level,
			 :is_active, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, w.q, query, item); err != nil {
		if isUniqueViolation(err) {
			return inventory.ErrDuplicateItem
		}
		return fmt.Errorf("在庫品目作成に失敗しました: %w", err)
	}
	return nil
}

func (w writer) CreateVendorItem(ctx context.Context, item *inventory.VendorItem) error {
	query := `
		INSERT INTO vendor_items
			(id, tenant_id, vendor_id, vendor_sku, inventory_item_id, name, case_size, unit, price, created_at)
		VALUES
			(:id, :tenant_id, :vendor_id, :vendor_sku, :inventory_item_id, :name, :case_size, :unit, :price, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, w.q, query, item); err != nil {
		if isUniqueViolation(err) {
			return inventory.ErrDuplicateVendorItem
		}
		return fmt.Errorf("仕入先品目作成に失敗しました: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
