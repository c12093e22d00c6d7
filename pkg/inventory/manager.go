package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Manager wires the costing components over one storage backend
// 1つのストレージ上に原価計算コンポーネントを構成する
type Manager struct {
	storage    Storage                 // ストレージ層
	publisher  EventPublisher          // イベント発行者
	logger     *zap.Logger             // ログ
	config     *Config                 // 設定
	engine     *ExplosionEngine        // レシピ展開
	runner     *TheoreticalUsageRunner // 理論使用量ランナー
	matcher    *ItemMatcher            // 品目照合
	reconciler *LedgerReconciler       // 台帳照合
	valuation  *ValuationEngine        // 在庫評価
	orderGuide *OrderGuideProcessor    // 発注ガイド
}

// すべてのインターフェースを実装することを明示
var (
	_ CostEngine    = (*Manager)(nil)
	_ VendorCatalog = (*Manager)(nil)
)

// Config holds configuration for the costing manager
// 原価計算マネージャーの設定を保持
type Config struct {
	Workers           int           `yaml:"workers"`             // 展開の並列数
	MatchWorkers      int           `yaml:"match_workers"`       // 照合の並列数
	ValuationLookback time.Duration `yaml:"valuation_lookback"`  // 加重平均原価の対象期間
	ExpandRecipeWaste bool          `yaml:"expand_recipe_waste"` // 完成品廃棄を原材料に展開
}

// DefaultConfig returns the default manager configuration
// デフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Workers:           DefaultWorkers,
		MatchWorkers:      DefaultWorkers,
		ValuationLookback: DefaultValuationLookback,
		ExpandRecipeWaste: true,
	}
}

// NewManager creates a new costing manager; publisher and metrics may be nil
// 新しい原価計算マネージャーを作成
func NewManager(storage Storage, publisher EventPublisher, logger *zap.Logger, metrics *Metrics, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := NewExplosionEngine(storage, logger.Named("explosion"), metrics)
	var expander WasteExpander
	if config.ExpandRecipeWaste {
		expander = engine
	}
	reconciler := NewLedgerReconciler(storage, expander, logger.Named("ledger"), metrics)
	matcher := NewItemMatcher(storage, logger.Named("matcher"), metrics, config.MatchWorkers)

	return &Manager{
		storage:    storage,
		publisher:  publisher,
		logger:     logger,
		config:     config,
		engine:     engine,
		runner:     NewTheoreticalUsageRunner(storage, engine, publisher, logger.Named("runner"), metrics, config.Workers),
		matcher:    matcher,
		reconciler: reconciler,
		valuation:  NewValuationEngine(storage, reconciler, logger.Named("valuation"), config.ValuationLookback),
		orderGuide: NewOrderGuideProcessor(matcher, storage, publisher, logger.Named("order_guide"), metrics),
	}
}

// Explode expands a recipe sold salesQty times
// レシピを販売数量分展開
func (m *Manager) Explode(ctx context.Context, recipeID string, salesQty float64, tenantID string) ([]IngredientUsage, error) {
	return m.engine.Explode(ctx, recipeID, salesQty, tenantID)
}

// ExplodeMenuItem expands a sold menu item
// メニュー品目を展開
func (m *Manager) ExplodeMenuItem(ctx context.Context, sale MenuItemSale, tenantID string) ([]IngredientUsage, error) {
	return m.engine.ExplodeMenuItem(ctx, sale, tenantID)
}

// ExplodeDetailed expands a sold menu item and reports absorbed warnings
// メニュー品目を展開し警告も返す
func (m *Manager) ExplodeDetailed(ctx context.Context, sale MenuItemSale, tenantID string) (*Explosion, error) {
	return m.engine.ExplodeDetailed(ctx, sale, tenantID)
}

// RunTheoreticalUsage costs a sales upload and persists the run
// 売上アップロードから理論使用量ランを実行
func (m *Manager) RunTheoreticalUsage(ctx context.Context, req RunRequest) (*TheoreticalUsageRun, error) {
	return m.runner.Run(ctx, req)
}

// UsageBetweenCounts returns actual usage between two counts
// 2回の棚卸間の実使用量を返す
func (m *Manager) UsageBetweenCounts(ctx context.Context, tenantID, storeID, previousCountID, currentCountID string) ([]UsageRow, error) {
	return m.reconciler.UsageBetweenCounts(ctx, tenantID, storeID, previousCountID, currentCountID)
}

// EstimatedOnHand returns the projected on-hand since the latest count
// 最新棚卸以降の推定在庫を返す
func (m *Manager) EstimatedOnHand(ctx context.Context, tenantID, storeID string) (*OnHandReport, error) {
	return m.reconciler.EstimatedOnHand(ctx, tenantID, storeID)
}

// ValueOnHand values the estimated on-hand of a store
// 推定在庫を評価
func (m *Manager) ValueOnHand(ctx context.Context, tenantID, storeID string) (*ValuationReport, error) {
	return m.valuation.ValueStore(ctx, tenantID, storeID)
}

// VarianceBetweenCounts compares actual usage between two counts with the
// theoretical usage of the given runs. Lines outside tenant and store are ignored.
// 実使用量と指定ランの理論使用量を比較
func (m *Manager) VarianceBetweenCounts(ctx context.Context, tenantID, storeID, previousCountID, currentCountID string, runIDs []string) (*VarianceReport, error) {
	actual, err := m.reconciler.UsageBetweenCounts(ctx, tenantID, storeID, previousCountID, currentCountID)
	if err != nil {
		return nil, err
	}
	if len(actual) == 0 {
		return CalculateVariance(nil, nil), nil
	}

	var theoretical []TheoreticalUsageLine
	for _, runID := range runIDs {
		lines, err := m.storage.GetTheoreticalUsageLines(ctx, runID)
		if err != nil {
			if IsNotFound(err) {
				m.logger.Warn("理論使用量ランが見つかりません", zap.String("run_id", runID))
				continue
			}
			return nil, NewStorageError("get_theoretical_usage_lines", "理論使用量明細の取得に失敗しました", err)
		}
		for _, l := range lines {
			if l.TenantID == tenantID && l.StoreID == storeID {
				theoretical = append(theoretical, l)
			}
		}
	}

	report := CalculateVariance(actual, theoretical)
	m.logger.Info("差異算出完了",
		zap.String("tenant_id", tenantID),
		zap.String("store_id", storeID),
		zap.Int("runs", len(runIDs)),
		zap.Float64("positive_variance_cost", report.PositiveVarianceCost),
		zap.Float64("negative_variance_cost", report.NegativeVarianceCost),
	)
	return report, nil
}

// FindBestMatch matches one vendor product
// 仕入先商品を1件照合
func (m *Manager) FindBestMatch(ctx context.Context, product VendorProduct, tenantID string) (MatchResult, error) {
	return m.matcher.FindBestMatch(ctx, product, tenantID)
}

// BatchMatch matches vendor products against one catalog snapshot
// 仕入先商品を一括照合
func (m *Manager) BatchMatch(ctx context.Context, products []VendorProduct, tenantID string) (map[string]MatchResult, error) {
	return m.matcher.BatchMatch(ctx, products, tenantID)
}

// ProcessOrderGuide links, queues or creates catalog entries for an order guide
// 発注ガイドを処理
func (m *Manager) ProcessOrderGuide(ctx context.Context, tenantID, vendorID string, products []VendorProduct) (*OrderGuideSummary, error) {
	return m.orderGuide.Process(ctx, tenantID, vendorID, products)
}

// Ping checks the storage connection
// ストレージ接続を確認
func (m *Manager) Ping(ctx context.Context) error {
	return m.storage.Ping(ctx)
}
