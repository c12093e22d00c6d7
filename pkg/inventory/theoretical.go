package inventory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the explosion fan-out used when none is configured
const DefaultWorkers = 8

// RunRequest describes one sales upload to cost for a store and business date
// 店舗・営業日単位の売上アップロード
type RunRequest struct {
	TenantID      string         `json:"tenant_id"`
	StoreID       string         `json:"store_id"`
	BusinessDate  time.Time      `json:"business_date"`
	UploadBatchID string         `json:"upload_batch_id"`
	Sales         []MenuItemSale `json:"sales"`
}

// runStore is the storage surface the runner needs
type runStore interface {
	RecipeStore
	RunWriter
	Transactor
}

// TheoreticalUsageRunner explodes a sales upload and persists the run atomically
// 売上アップロードを展開し、ランをアトミックに永続化
type TheoreticalUsageRunner struct {
	store     runStore
	engine    *ExplosionEngine
	publisher EventPublisher
	logger    *zap.Logger
	metrics   *Metrics
	workers   int
	now       func() time.Time
}

// NewTheoreticalUsageRunner creates a new runner
// 新しい理論使用量ランナーを作成
func NewTheoreticalUsageRunner(store runStore, engine *ExplosionEngine, publisher EventPublisher, logger *zap.Logger, metrics *Metrics, workers int) *TheoreticalUsageRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &TheoreticalUsageRunner{
		store:     store,
		engine:    engine,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		workers:   workers,
		now:       time.Now,
	}
}

// Run costs a sales upload. On any failure after the run row is created the run is
// marked failed and the wrapped error is returned; a failed run never has lines.
// 売上を原価計算する。失敗時はランを failed にしてエラーを返す
func (r *TheoreticalUsageRunner) Run(ctx context.Context, req RunRequest) (*TheoreticalUsageRun, error) {
	if err := ValidateRunRequest(req); err != nil {
		return nil, err
	}

	started := r.now()
	run := &TheoreticalUsageRun{
		ID:            NewRunID(),
		TenantID:      req.TenantID,
		StoreID:       req.StoreID,
		BusinessDate:  req.BusinessDate,
		UploadBatchID: req.UploadBatchID,
		Status:        RunStatusProcessing,
		StartedAt:     started,
	}
	if err := r.store.CreateTheoreticalUsageRun(ctx, run); err != nil {
		return nil, NewStorageError("create_theoretical_usage_run", "理論使用量ランの作成に失敗しました", err)
	}

	logger := r.logger.With(
		zap.String("run_id", run.ID),
		zap.String("tenant_id", run.TenantID),
		zap.String("store_id", run.StoreID),
	)

	lines, warnings, err := r.explodeSales(ctx, req)
	if err != nil {
		return nil, r.fail(ctx, run, "explode", err, logger)
	}

	totalCost, totalSold := runTotals(lines, req.Sales)
	completedAt := r.now()
	update := RunUpdate{
		Status:               RunStatusCompleted,
		TotalTheoreticalCost: totalCost,
		TotalQuantitySold:    totalSold,
		LineCount:            len(lines),
		CompletedAt:          &completedAt,
	}

	for i := range lines {
		lines[i].ID = NewID()
		lines[i].RunID = run.ID
		lines[i].TenantID = run.TenantID
		lines[i].StoreID = run.StoreID
		lines[i].BusinessDate = run.BusinessDate
	}

	// 明細の登録とラン完了は同一トランザクションで行う
	err = r.store.WithinTx(ctx, func(tx TxStore) error {
		if len(lines) > 0 {
			if err := tx.CreateTheoreticalUsageLines(ctx, lines); err != nil {
				return NewStorageError("create_theoretical_usage_lines", "理論使用量明細の登録に失敗しました", err)
			}
		}
		if err := tx.UpdateTheoreticalUsageRun(ctx, run.ID, update); err != nil {
			return NewStorageError("update_theoretical_usage_run", "理論使用量ランの更新に失敗しました", err)
		}
		return nil
	})
	if err != nil {
		return nil, r.fail(ctx, run, "persist", err, logger)
	}

	run.Status = RunStatusCompleted
	run.TotalTheoreticalCost = totalCost
	run.TotalQuantitySold = totalSold
	run.LineCount = len(lines)
	run.CompletedAt = &completedAt
	r.metrics.runFinished(RunStatusCompleted, started)

	if r.publisher != nil {
		event := RunCompletedEvent{
			RunID:                run.ID,
			TenantID:             run.TenantID,
			StoreID:              run.StoreID,
			BusinessDate:         run.BusinessDate,
			LineCount:            run.LineCount,
			TotalTheoreticalCost: run.TotalTheoreticalCost,
			Timestamp:            completedAt,
		}
		if err := r.publisher.PublishRunCompleted(ctx, event); err != nil {
			logger.Error("イベント発行に失敗しました", zap.Error(err))
		}
	}

	logger.Info("理論使用量ラン完了",
		zap.Int("line_count", run.LineCount),
		zap.Int("warning_count", warnings),
		zap.Float64("total_theoretical_cost", run.TotalTheoreticalCost),
		zap.Duration("elapsed", completedAt.Sub(started)),
	)
	return run, nil
}

// explodeSales fans out one explosion per sale and merges the results in input order
func (r *TheoreticalUsageRunner) explodeSales(ctx context.Context, req RunRequest) ([]TheoreticalUsageLine, int, error) {
	if len(req.Sales) == 0 {
		return nil, 0, nil
	}

	conversions, err := r.store.GetUnitConversions(ctx)
	if err != nil {
		return nil, 0, NewStorageError("get_unit_conversions", "単位換算の取得に失敗しました", err)
	}
	table := NewConversionTable(conversions)
	cache := newGraphCache(r.store)

	results := make([]*Explosion, len(req.Sales))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, sale := range req.Sales {
		i, sale := i, sale
		g.Go(func() error {
			res, err := r.engine.explode(gctx, sale, req.TenantID, cache, table)
			if err != nil {
				return fmt.Errorf("menu item %s: %w", sale.MenuItemID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	groups := make([][]IngredientUsage, len(results))
	warnings := 0
	for i, res := range results {
		groups[i] = res.Usages
		warnings += len(res.Warnings)
		r.engine.report(req.TenantID, req.Sales[i], res.Warnings)
	}

	usages := AggregateUsages(groups...)
	lines := make([]TheoreticalUsageLine, len(usages))
	for i, u := range usages {
		lines[i] = TheoreticalUsageLine{
			InventoryItemID:     u.InventoryItemID,
			RequiredQtyBaseUnit: u.RequiredQtyBaseUnit,
			CostAtSale:          u.CostAtSale,
			SourceTrace:         u.SourceTrace,
		}
	}
	return lines, warnings, nil
}

// fail marks the run failed outside the aborted transaction and wraps cause
func (r *TheoreticalUsageRunner) fail(ctx context.Context, run *TheoreticalUsageRun, stage string, cause error, logger *zap.Logger) error {
	failedAt := r.now()
	update := RunUpdate{
		Status:       RunStatusFailed,
		ErrorMessage: cause.Error(),
		FailedAt:     &failedAt,
	}
	// 呼び出し元のキャンセル後でも失敗状態を記録する
	if err := r.store.UpdateTheoreticalUsageRun(context.WithoutCancel(ctx), run.ID, update); err != nil {
		logger.Error("ランの失敗状態の記録に失敗しました", zap.Error(err))
	}
	run.Status = RunStatusFailed
	run.ErrorMessage = cause.Error()
	run.FailedAt = &failedAt
	r.metrics.runFinished(RunStatusFailed, run.StartedAt)

	if r.publisher != nil {
		event := RunFailedEvent{
			RunID:     run.ID,
			TenantID:  run.TenantID,
			StoreID:   run.StoreID,
			Error:     cause.Error(),
			Timestamp: failedAt,
		}
		if err := r.publisher.PublishRunFailed(ctx, event); err != nil {
			logger.Error("イベント発行に失敗しました", zap.Error(err))
		}
	}

	logger.Error("理論使用量ラン失敗", zap.String("stage", stage), zap.Error(cause))
	return NewRunError(run.ID, stage, cause)
}

// runTotals recomputes run totals from the lines; input totals are never trusted
func runTotals(lines []TheoreticalUsageLine, sales []MenuItemSale) (float64, float64) {
	costs := make([]float64, len(lines))
	for i, l := range lines {
		costs[i] = l.CostAtSale
	}
	sold := make([]float64, len(sales))
	for i, s := range sales {
		sold[i] = s.QuantitySold
	}
	return sumMoney(costs...), sumMoney(sold...)
}
