package inventory

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Score weights and tier thresholds
// スコアの重みと信頼度の閾値
const (
	nameWeight     = 0.60
	skuWeight      = 0.25
	categoryWeight = 0.15

	highThreshold   = 0.85
	mediumThreshold = 0.65
	lowThreshold    = 0.45
)

// semanticCategories groups keywords that denote the same storage family
// 同一分類を表すキーワード群
var semanticCategories = map[string][]string{
	"dairy":    {"dairy", "milk", "cheese", "walk-in"},
	"frozen":   {"frozen", "freezer"},
	"produce":  {"produce", "vegetable", "fruit", "fresh"},
	"meat":     {"meat", "protein", "beef", "chicken", "pork", "poultry"},
	"dry":      {"dry", "dry goods", "pantry", "grocery"},
	"beverage": {"beverage", "drink", "bar"},
	"bakery":   {"bakery", "bread", "pastry"},
}

type candidate struct {
	id       string
	name     string
	sku      string
	category string
}

// CatalogSnapshot is the active catalog of one tenant, read once per batch
// バッチ単位で一度だけ取得するテナントの有効カタログ
type CatalogSnapshot struct {
	TenantID   string
	candidates []candidate
}

// NewCatalogSnapshot keeps the active items of tenantID in catalog order and
// resolves category names from categories when the item carries none.
// 有効品目のみをカタログ順に保持し、カテゴリ名を解決する
func NewCatalogSnapshot(tenantID string, items []InventoryItem, categories []Category) *CatalogSnapshot {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		if c.TenantID == tenantID {
			names[c.ID] = c.Name
		}
	}

	s := &CatalogSnapshot{TenantID: tenantID}
	for _, it := range items {
		if !it.IsActive || it.TenantID != tenantID {
			continue
		}
		category := it.CategoryName
		if category == "" && it.CategoryID != nil {
			category = names[*it.CategoryID]
		}
		s.candidates = append(s.candidates, candidate{
			id:       it.ID,
			name:     normalizeText(it.Name),
			sku:      normalizeSKU(it.SKU),
			category: normalizeText(category),
		})
	}
	return s
}

// Len returns the number of candidate items
func (s *CatalogSnapshot) Len() int {
	return len(s.candidates)
}

// Match scores product against every candidate and returns the best one.
// The strictly highest total wins; on ties the earlier catalog item is kept.
// 全候補をスコアリングし最良の候補を返す（同点は先勝ち）
func (s *CatalogSnapshot) Match(product VendorProduct) MatchResult {
	if len(s.candidates) == 0 {
		return MatchResult{Confidence: ConfidenceNone, Reason: "カタログが空です"}
	}

	name := normalizeText(product.Name)
	sku := normalizeSKU(product.VendorSKU)
	category := normalizeText(product.CategoryCode)

	best := -1.0
	var bestIdx int
	var bestName, bestSKU, bestCategory float64
	for i, c := range s.candidates {
		ns := nameScore(name, c.name)
		ss := skuScore(sku, c.sku)
		cs := categoryScore(category, c.category)
		total := ns*nameWeight + ss*skuWeight + cs*categoryWeight
		if total > best {
			best, bestIdx = total, i
			bestName, bestSKU, bestCategory = ns, ss, cs
		}
	}

	result := MatchResult{
		Confidence:    tier(best, bestSKU),
		Score:         best,
		NameScore:     bestName,
		SKUScore:      bestSKU,
		CategoryScore: bestCategory,
		Reason:        fmt.Sprintf("name=%.2f sku=%.2f category=%.2f", bestName, bestSKU, bestCategory),
	}
	if result.Confidence != ConfidenceNone {
		id := s.candidates[bestIdx].id
		result.InventoryItemID = &id
	}
	return result
}

func tier(score, sku float64) Confidence {
	switch {
	case score >= highThreshold || sku == 1.0:
		return ConfidenceHigh
	case score >= mediumThreshold:
		return ConfidenceMedium
	case score >= lowThreshold:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizeSKU(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

// nameScore: exact 1.0, containment 0.8, else normalised edit distance
func nameScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	score := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

func skuScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.5
	}
	return 0
}

func categoryScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	for _, keywords := range semanticCategories {
		if containsAny(a, keywords) && containsAny(b, keywords) {
			return 0.7
		}
	}
	return nameScore(a, b) * 0.6
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ItemMatcher matches vendor catalog rows against a tenant's inventory items
// 仕入先商品をテナントの在庫品目と照合
type ItemMatcher struct {
	catalog CatalogStore
	logger  *zap.Logger
	metrics *Metrics
	workers int
}

// NewItemMatcher creates a new item matcher
// 新しい品目照合器を作成
func NewItemMatcher(catalog CatalogStore, logger *zap.Logger, metrics *Metrics, workers int) *ItemMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &ItemMatcher{
		catalog: catalog,
		logger:  logger,
		metrics: metrics,
		workers: workers,
	}
}

// Snapshot reads the tenant catalog once
// テナントカタログを取得
func (m *ItemMatcher) Snapshot(ctx context.Context, tenantID string) (*CatalogSnapshot, error) {
	items, err := m.catalog.GetInventoryItems(ctx, tenantID)
	if err != nil {
		return nil, NewStorageError("get_inventory_items", "在庫品目一覧の取得に失敗しました", err)
	}
	categories, err := m.catalog.GetCategories(ctx, tenantID)
	if err != nil {
		return nil, NewStorageError("get_categories", "カテゴリ一覧の取得に失敗しました", err)
	}
	return NewCatalogSnapshot(tenantID, items, categories), nil
}

// FindBestMatch returns the best active catalog item for product
// 仕入先商品に最も近い在庫品目を返す
func (m *ItemMatcher) FindBestMatch(ctx context.Context, product VendorProduct, tenantID string) (MatchResult, error) {
	if err := ValidateID("tenant_id", tenantID); err != nil {
		return MatchResult{}, err
	}
	snap, err := m.Snapshot(ctx, tenantID)
	if err != nil {
		return MatchResult{}, err
	}
	result := snap.Match(product)
	m.metrics.match(result.Confidence)
	return result, nil
}

// BatchMatch matches products against one catalog snapshot, keyed by vendor SKU.
// When a SKU repeats, the first row wins.
// 一括照合（仕入先SKUをキーとする。重複時は先頭行を採用）
func (m *ItemMatcher) BatchMatch(ctx context.Context, products []VendorProduct, tenantID string) (map[string]MatchResult, error) {
	if err := ValidateID("tenant_id", tenantID); err != nil {
		return nil, err
	}
	snap, err := m.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	results, err := m.matchAll(ctx, snap, products)
	if err != nil {
		return nil, err
	}

	out := make(map[string]MatchResult, len(products))
	for i, p := range products {
		if _, dup := out[p.VendorSKU]; dup {
			continue
		}
		out[p.VendorSKU] = results[i]
	}
	return out, nil
}

func (m *ItemMatcher) matchAll(ctx context.Context, snap *CatalogSnapshot, products []VendorProduct) ([]MatchResult, error) {
	results := make([]MatchResult, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, p := range products {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = snap.Match(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[Confidence]int)
	for _, r := range results {
		m.metrics.match(r.Confidence)
		counts[r.Confidence]++
	}
	m.logger.Info("仕入先商品の一括照合完了",
		zap.String("tenant_id", snap.TenantID),
		zap.Int("products", len(products)),
		zap.Int("catalog_size", snap.Len()),
		zap.Int("high", counts[ConfidenceHigh]),
		zap.Int("medium", counts[ConfidenceMedium]),
		zap.Int("low", counts[ConfidenceLow]),
		zap.Int("none", counts[ConfidenceNone]),
	)
	return results, nil
}
