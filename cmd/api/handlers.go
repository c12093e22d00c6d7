package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory"
	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory/orderguide"
)

const dateLayout = "2006-01-02"

// CostService is the manager surface the HTTP API exposes
// HTTP APIが公開するマネージャー操作
type CostService interface {
	inventory.CostEngine
	inventory.VendorCatalog
	ExplodeDetailed(ctx context.Context, sale inventory.MenuItemSale, tenantID string) (*inventory.Explosion, error)
	ValueOnHand(ctx context.Context, tenantID, storeID string) (*inventory.ValuationReport, error)
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handlers for the costing API
// 原価計算API用のHTTPハンドラーを保持
type Handlers struct {
	service     CostService
	logger      *zap.Logger
	maxUploadMB int64
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(service CostService, logger *zap.Logger, maxUploadMB int64) *Handlers {
	return &Handlers{
		service:     service,
		logger:      logger,
		maxUploadMB: maxUploadMB,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ExplodeRequest represents request to explode a recipe
// レシピ展開リクエストを表現
type ExplodeRequest struct {
	Quantity float64 `json:"quantity"`
}

// RunRequest represents a sales upload to cost
// 売上アップロードの原価計算リクエストを表現
type RunRequest struct {
	BusinessDate  string                   `json:"business_date"` // YYYY-MM-DD
	UploadBatchID string                   `json:"upload_batch_id"`
	Sales         []inventory.MenuItemSale `json:"sales"`
}

// VendorMatchRequest represents vendor products to match
// 仕入先商品照合リクエストを表現
type VendorMatchRequest struct {
	Products []inventory.VendorProduct `json:"products"`
}

// OrderGuideResponse combines parse errors with the processing summary
// 発注ガイドの読込エラーと処理結果
type OrderGuideResponse struct {
	ParseErrors []orderguide.RowError        `json:"parse_errors"`
	Summary     *inventory.OrderGuideSummary `json:"summary"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("ヘルスチェックでDB接続に失敗しました", zap.Error(err))
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.sendJSON(w, code, APIResponse{
		Success: code == http.StatusOK,
		Data: map[string]interface{}{
			"status":    status,
			"timestamp": time.Now(),
			"service":   "zaiKitchenCost",
		},
	})
}

// ExplodeRecipe handles recipe explosion requests
// レシピ展開リクエストを処理
func (h *Handlers) ExplodeRecipe(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req ExplodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	result, err := h.service.ExplodeDetailed(r.Context(), inventory.MenuItemSale{
		MenuItemID:   vars["recipeId"],
		RecipeID:     vars["recipeId"],
		QuantitySold: req.Quantity,
	}, vars["tenantId"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	// 警告は展開結果と合わせて返す
	warnings := result.Warnings
	if warnings == nil {
		warnings = []inventory.ExplosionWarning{}
	}
	h.sendSuccess(w, inventory.Explosion{
		Usages:   inventory.PresentUsages(result.Usages),
		Warnings: warnings,
	})
}

// CreateTheoreticalRun handles sales uploads for a store
// 店舗の売上アップロードを処理
func (h *Handlers) CreateTheoreticalRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	businessDate, err := time.Parse(dateLayout, req.BusinessDate)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "営業日はYYYY-MM-DD形式で指定してください")
		return
	}

	run, err := h.service.RunTheoreticalUsage(r.Context(), inventory.RunRequest{
		TenantID:      vars["tenantId"],
		StoreID:       vars["storeId"],
		BusinessDate:  businessDate,
		UploadBatchID: req.UploadBatchID,
		Sales:         req.Sales,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, APIResponse{Success: true, Data: run})
}

// GetUsage handles actual usage requests between two counts
// 棚卸間の実使用量リクエストを処理
func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	previous, current, ok := h.countRange(w, r)
	if !ok {
		return
	}

	rows, err := h.service.UsageBetweenCounts(r.Context(), vars["tenantId"], vars["storeId"], previous, current)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, inventory.PresentUsageRows(rows))
}

// GetOnHand handles estimated on-hand requests
// 推定在庫リクエストを処理
func (h *Handlers) GetOnHand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	report, err := h.service.EstimatedOnHand(r.Context(), vars["tenantId"], vars["storeId"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, report)
}

// GetValuation handles on-hand valuation requests
// 在庫評価リクエストを処理
func (h *Handlers) GetValuation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	report, err := h.service.ValueOnHand(r.Context(), vars["tenantId"], vars["storeId"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, report)
}

// GetVariance handles variance requests; runs are passed as repeated run= parameters
// 差異リクエストを処理（ランは run= パラメータで複数指定）
func (h *Handlers) GetVariance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	previous, current, ok := h.countRange(w, r)
	if !ok {
		return
	}

	var runIDs []string
	for _, v := range r.URL.Query()["run"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				runIDs = append(runIDs, id)
			}
		}
	}

	report, err := h.service.VarianceBetweenCounts(r.Context(), vars["tenantId"], vars["storeId"], previous, current, runIDs)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, report)
}

// MatchVendorProducts handles vendor product matching requests
// 仕入先商品照合リクエストを処理
func (h *Handlers) MatchVendorProducts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req VendorMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if len(req.Products) == 0 {
		h.sendError(w, http.StatusBadRequest, "照合する商品がありません")
		return
	}

	results, err := h.service.BatchMatch(r.Context(), req.Products, vars["tenantId"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, results)
}

// UploadOrderGuide handles multipart order guide uploads (CSV or XLSX)
// 発注ガイドのアップロードを処理
func (h *Handlers) UploadOrderGuide(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "ファイルが指定されていません")
		return
	}
	defer file.Close()

	parsed, err := orderguide.Parse(file, header.Filename)
	if err != nil {
		h.logger.Warn("発注ガイドの読み込みに失敗しました",
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.service.ProcessOrderGuide(r.Context(), vars["tenantId"], vars["vendorId"], parsed.Products)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, OrderGuideResponse{ParseErrors: parsed.Errors, Summary: summary})
}

// ヘルパーメソッド

func (h *Handlers) countRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	query := r.URL.Query()
	previous, current := query.Get("previous"), query.Get("current")
	if previous == "" || current == "" {
		h.sendError(w, http.StatusBadRequest, "previous と current の棚卸IDを指定してください")
		return "", "", false
	}
	return previous, current, true
}

// statusFor maps domain errors to HTTP status codes
// ドメインエラーをHTTPステータスに変換
func statusFor(err error) int {
	var validationErr *inventory.ValidationError
	var ruleErr *inventory.BusinessRuleError
	switch {
	case errors.As(err, &validationErr), errors.Is(err, inventory.ErrNegativeQuantity):
		return http.StatusBadRequest
	case inventory.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrDuplicateItem), errors.Is(err, inventory.ErrDuplicateVendorItem):
		return http.StatusConflict
	case errors.As(err, &ruleErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) sendServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Error(err))
	}
	h.sendError(w, code, err.Error())
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, APIResponse{Success: false, Error: message})
}

func (h *Handlers) sendJSON(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}
