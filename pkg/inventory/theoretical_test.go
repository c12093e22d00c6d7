package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRunner(store *fakeStore, writer *MockStore, pub *MockPublisher, metrics *Metrics) *TheoreticalUsageRunner {
	storage := testStorage{fakeStore: store, MockStore: writer}
	engine := NewExplosionEngine(store, zap.NewNop(), metrics)
	var publisher EventPublisher
	if pub != nil {
		publisher = pub
	}
	return NewTheoreticalUsageRunner(storage, engine, publisher, zap.NewNop(), metrics, 2)
}

func pizzaRequest() RunRequest {
	return RunRequest{
		TenantID:      testTenant,
		StoreID:       testStore,
		BusinessDate:  date(2024, 3, 2),
		UploadBatchID: "batch-1",
		Sales: []MenuItemSale{
			{MenuItemID: "m-margherita", MenuItemName: "Margherita", RecipeID: "pizza-dough", QuantitySold: 10},
			{MenuItemID: "m-marinara", MenuItemName: "Marinara", RecipeID: "pizza-dough", QuantitySold: 5},
		},
	}
}

func runStatus(status RunStatus) interface{} {
	return mock.MatchedBy(func(u RunUpdate) bool { return u.Status == status })
}

// TestTheoreticalUsageRunner_Success はランの正常完了のテスト
func TestTheoreticalUsageRunner_Success(t *testing.T) {
	writer := new(MockStore)
	pub := new(MockPublisher)
	metrics := NewMetrics(prometheus.NewRegistry())
	runner := newTestRunner(pizzaStore(), writer, pub, metrics)
	ctx := context.Background()

	var persisted []TheoreticalUsageLine
	writer.On("CreateTheoreticalUsageRun", ctx, mock.MatchedBy(func(r *TheoreticalUsageRun) bool {
		return r.Status == RunStatusProcessing && r.UploadBatchID == "batch-1"
	})).Return(nil)
	writer.On("WithinTx", ctx).Return(nil)
	writer.On("CreateTheoreticalUsageLines", ctx, mock.Anything).
		Run(func(args mock.Arguments) { persisted = args.Get(1).([]TheoreticalUsageLine) }).
		Return(nil)
	writer.On("UpdateTheoreticalUsageRun", ctx, mock.Anything, mock.MatchedBy(func(u RunUpdate) bool {
		return u.Status == RunStatusCompleted && u.LineCount == 1 && u.TotalQuantitySold == 15 && u.CompletedAt != nil
	})).Return(nil)
	pub.On("PublishRunCompleted", ctx, mock.AnythingOfType("RunCompletedEvent")).Return(nil)

	run, err := runner.Run(ctx, pizzaRequest())
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.LineCount)
	assert.Equal(t, 15.0, run.TotalQuantitySold)
	// 15 * 0.5 / 0.9 lb * $0.40
	assert.InDelta(t, 15*0.5/0.9*0.40, run.TotalTheoreticalCost, 1e-9)

	require.Len(t, persisted, 1)
	line := persisted[0]
	assert.Equal(t, run.ID, line.RunID)
	assert.Equal(t, testTenant, line.TenantID)
	assert.Equal(t, testStore, line.StoreID)
	assert.Equal(t, date(2024, 3, 2), line.BusinessDate)
	assert.NotEmpty(t, line.ID)
	assert.InDelta(t, 15*0.5/0.9, line.RequiredQtyBaseUnit, 1e-9)
	require.Len(t, line.SourceTrace, 2)
	assert.Equal(t, "m-margherita", line.SourceTrace[0].MenuItemID)
	assert.Equal(t, "m-marinara", line.SourceTrace[1].MenuItemID)

	writer.AssertExpectations(t)
	pub.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(string(RunStatusCompleted))))
}

// TestTheoreticalUsageRunner_PersistFailure は明細登録失敗時にランが failed になることのテスト
func TestTheoreticalUsageRunner_PersistFailure(t *testing.T) {
	writer := new(MockStore)
	pub := new(MockPublisher)
	runner := newTestRunner(pizzaStore(), writer, pub, nil)
	ctx := context.Background()
	diskFull := errors.New("disk full")

	writer.On("CreateTheoreticalUsageRun", ctx, mock.Anything).Return(nil)
	writer.On("WithinTx", ctx).Return(nil)
	writer.On("CreateTheoreticalUsageLines", ctx, mock.Anything).Return(diskFull)
	writer.On("UpdateTheoreticalUsageRun", mock.Anything, mock.Anything, mock.MatchedBy(func(u RunUpdate) bool {
		return u.Status == RunStatusFailed && u.FailedAt != nil && u.ErrorMessage != ""
	})).Return(nil)
	pub.On("PublishRunFailed", ctx, mock.AnythingOfType("RunFailedEvent")).Return(nil)

	run, err := runner.Run(ctx, pizzaRequest())
	require.Error(t, err)
	assert.Nil(t, run)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "persist", runErr.Stage)
	assert.ErrorIs(t, err, diskFull)

	writer.AssertNotCalled(t, "UpdateTheoreticalUsageRun", mock.Anything, mock.Anything, runStatus(RunStatusCompleted))
	writer.AssertExpectations(t)
	pub.AssertExpectations(t)
}

// TestTheoreticalUsageRunner_ExplodeFailure は展開中のストレージエラーで明細が書き込まれないことのテスト
func TestTheoreticalUsageRunner_ExplodeFailure(t *testing.T) {
	store := pizzaStore()
	store.failOn["GetRecipe"] = assert.AnError
	writer := new(MockStore)
	runner := newTestRunner(store, writer, nil, nil)
	ctx := context.Background()

	writer.On("CreateTheoreticalUsageRun", ctx, mock.Anything).Return(nil)
	writer.On("UpdateTheoreticalUsageRun", mock.Anything, mock.Anything, runStatus(RunStatusFailed)).Return(nil)

	_, err := runner.Run(ctx, pizzaRequest())
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "explode", runErr.Stage)
	assert.ErrorIs(t, err, assert.AnError)

	writer.AssertNotCalled(t, "WithinTx", mock.Anything)
	writer.AssertNotCalled(t, "CreateTheoreticalUsageLines", mock.Anything, mock.Anything)
	writer.AssertExpectations(t)
}

// TestTheoreticalUsageRunner_NoSales は売上0件でも完了することのテスト
func TestTheoreticalUsageRunner_NoSales(t *testing.T) {
	writer := new(MockStore)
	runner := newTestRunner(pizzaStore(), writer, nil, nil)
	ctx := context.Background()

	writer.On("CreateTheoreticalUsageRun", ctx, mock.Anything).Return(nil)
	writer.On("WithinTx", ctx).Return(nil)
	writer.On("UpdateTheoreticalUsageRun", ctx, mock.Anything, mock.MatchedBy(func(u RunUpdate) bool {
		return u.Status == RunStatusCompleted && u.LineCount == 0 && u.TotalTheoreticalCost == 0
	})).Return(nil)

	req := pizzaRequest()
	req.Sales = nil
	run, err := runner.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)

	writer.AssertNotCalled(t, "CreateTheoreticalUsageLines", mock.Anything, mock.Anything)
	writer.AssertExpectations(t)
}

// TestTheoreticalUsageRunner_Validation はバリデーションエラー時にランを作成しないことのテスト
func TestTheoreticalUsageRunner_Validation(t *testing.T) {
	writer := new(MockStore)
	runner := newTestRunner(pizzaStore(), writer, nil, nil)

	tests := []struct {
		name   string
		mutate func(*RunRequest)
	}{
		{"店舗ID空", func(r *RunRequest) { r.StoreID = "" }},
		{"営業日なし", func(r *RunRequest) { r.BusinessDate = time.Time{} }},
		{"負の販売数", func(r *RunRequest) { r.Sales[0].QuantitySold = -1 }},
		{"レシピID不正", func(r *RunRequest) { r.Sales[1].RecipeID = "bad id!" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pizzaRequest()
			tt.mutate(&req)
			_, err := runner.Run(context.Background(), req)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
	writer.AssertNotCalled(t, "CreateTheoreticalUsageRun", mock.Anything, mock.Anything)
}

// TestTheoreticalUsageRunner_CreateRunFailure はラン作成失敗時に failed 更新しないことのテスト
func TestTheoreticalUsageRunner_CreateRunFailure(t *testing.T) {
	writer := new(MockStore)
	runner := newTestRunner(pizzaStore(), writer, nil, nil)
	ctx := context.Background()

	writer.On("CreateTheoreticalUsageRun", ctx, mock.Anything).Return(assert.AnError)

	_, err := runner.Run(ctx, pizzaRequest())
	var sErr *StorageError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "create_theoretical_usage_run", sErr.Operation)
	writer.AssertNotCalled(t, "UpdateTheoreticalUsageRun", mock.Anything, mock.Anything, mock.Anything)
}
