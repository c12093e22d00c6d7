package inventory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// WarningKind classifies a data quality issue absorbed during explosion
// 展開中に吸収されたデータ品質問題の種別
type WarningKind string

const (
	WarningCycleSkipped          WarningKind = "cycle_skipped"          // 循環参照を検出して枝をスキップ
	WarningMissingRecipe         WarningKind = "missing_recipe"         // レシピが存在しない
	WarningMissingItem           WarningKind = "missing_item"           // 在庫品目が存在しない
	WarningConversionPassthrough WarningKind = "conversion_passthrough" // 換算未定義のため1:1で通過
	WarningYieldDefaulted        WarningKind = "yield_defaulted"        // 歩留まり0以下のため100%扱い
)

// ExplosionWarning describes one absorbed issue
// 吸収された問題の詳細
type ExplosionWarning struct {
	Kind       WarningKind `json:"kind"`
	RecipeID   string      `json:"recipe_id,omitempty"`
	ItemID     string      `json:"item_id,omitempty"`
	FromUnitID string      `json:"from_unit_id,omitempty"`
	ToUnitID   string      `json:"to_unit_id,omitempty"`
}

func (w ExplosionWarning) String() string {
	switch w.Kind {
	case WarningConversionPassthrough:
		return fmt.Sprintf("%s item=%s %s->%s", w.Kind, w.ItemID, w.FromUnitID, w.ToUnitID)
	case WarningMissingItem, WarningYieldDefaulted:
		return fmt.Sprintf("%s item=%s", w.Kind, w.ItemID)
	default:
		return fmt.Sprintf("%s recipe=%s", w.Kind, w.RecipeID)
	}
}

// Explosion is the full result of exploding one sold menu item
// メニュー品目1件分の展開結果
type Explosion struct {
	Usages   []IngredientUsage  `json:"usages"`
	Warnings []ExplosionWarning `json:"warnings"`
}

// ExplosionEngine walks recipe graphs down to inventory items
// レシピグラフを在庫品目まで展開するエンジン
type ExplosionEngine struct {
	recipes RecipeStore
	logger  *zap.Logger
	metrics *Metrics
}

// NewExplosionEngine creates a new explosion engine
// 新しい展開エンジンを作成
func NewExplosionEngine(recipes RecipeStore, logger *zap.Logger, metrics *Metrics) *ExplosionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExplosionEngine{
		recipes: recipes,
		logger:  logger,
		metrics: metrics,
	}
}

// Explode expands recipeID sold salesQty times into base-unit ingredient usage
// レシピを販売数量分だけ展開し、基本単位の原材料使用量を返す
func (e *ExplosionEngine) Explode(ctx context.Context, recipeID string, salesQty float64, tenantID string) ([]IngredientUsage, error) {
	result, err := e.ExplodeDetailed(ctx, MenuItemSale{
		MenuItemID:   recipeID,
		RecipeID:     recipeID,
		QuantitySold: salesQty,
	}, tenantID)
	if err != nil {
		return nil, err
	}
	return result.Usages, nil
}

// ExplodeMenuItem expands a sold menu item; traces carry the menu item identity
// 販売されたメニュー品目を展開（トレースにメニュー品目を記録）
func (e *ExplosionEngine) ExplodeMenuItem(ctx context.Context, sale MenuItemSale, tenantID string) ([]IngredientUsage, error) {
	result, err := e.ExplodeDetailed(ctx, sale, tenantID)
	if err != nil {
		return nil, err
	}
	return result.Usages, nil
}

// ExplodeDetailed is ExplodeMenuItem plus the absorbed warnings
// 展開結果と警告を返す
func (e *ExplosionEngine) ExplodeDetailed(ctx context.Context, sale MenuItemSale, tenantID string) (*Explosion, error) {
	if err := validateSale(sale, tenantID); err != nil {
		return nil, err
	}

	conversions, err := e.recipes.GetUnitConversions(ctx)
	if err != nil {
		return nil, NewStorageError("get_unit_conversions", "単位換算の取得に失敗しました", err)
	}

	result, err := e.explode(ctx, sale, tenantID, newGraphCache(e.recipes), NewConversionTable(conversions))
	if err != nil {
		return nil, err
	}
	e.report(tenantID, sale, result.Warnings)
	return result, nil
}

// ExplodeBatch explodes several sales against one shared conversion table and
// graph cache. Sales that fail validation are returned in skipped and not
// exploded; only storage and context errors abort the batch.
// 複数の販売を共有キャッシュで一括展開（不正な販売はスキップ）
func (e *ExplosionEngine) ExplodeBatch(ctx context.Context, sales []MenuItemSale, tenantID string) (results []*Explosion, skipped []MenuItemSale, err error) {
	if err := ValidateID("tenant_id", tenantID); err != nil {
		return nil, nil, err
	}
	if len(sales) == 0 {
		return nil, nil, nil
	}

	conversions, err := e.recipes.GetUnitConversions(ctx)
	if err != nil {
		return nil, nil, NewStorageError("get_unit_conversions", "単位換算の取得に失敗しました", err)
	}
	table := NewConversionTable(conversions)
	cache := newGraphCache(e.recipes)

	for _, sale := range sales {
		if err := validateSale(sale, tenantID); err != nil {
			skipped = append(skipped, sale)
			continue
		}
		res, err := e.explode(ctx, sale, tenantID, cache, table)
		if err != nil {
			return nil, nil, err
		}
		e.report(tenantID, sale, res.Warnings)
		results = append(results, res)
	}
	return results, skipped, nil
}

// node is one pending unit of work on the traversal stack. A recipe node is
// expanded into its components; an item node is a leaf with its final quantity.
type node struct {
	recipeID   string
	item       *InventoryItemComponent
	multiplier float64
	path       pathSet
}

// pathSet is the set of recipes on the current root-to-node path. It is never
// mutated after creation; descending copies it.
type pathSet map[string]struct{}

func (p pathSet) with(recipeID string) pathSet {
	next := make(pathSet, len(p)+1)
	for id := range p {
		next[id] = struct{}{}
	}
	next[recipeID] = struct{}{}
	return next
}

func (p pathSet) has(recipeID string) bool {
	_, ok := p[recipeID]
	return ok
}

func (e *ExplosionEngine) explode(ctx context.Context, sale MenuItemSale, tenantID string, cache *graphCache, table *ConversionTable) (*Explosion, error) {
	result := &Explosion{}
	index := make(map[string]int)

	name := sale.MenuItemName
	stack := []node{{recipeID: sale.RecipeID, multiplier: sale.QuantitySold, path: pathSet{}}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.item != nil {
			warnings, err := e.emitLeaf(ctx, result, index, n, sale, name, tenantID, cache, table)
			if err != nil {
				return nil, err
			}
			result.Warnings = append(result.Warnings, warnings...)
			continue
		}

		if n.path.has(n.recipeID) {
			result.Warnings = append(result.Warnings, ExplosionWarning{Kind: WarningCycleSkipped, RecipeID: n.recipeID})
			continue
		}

		recipe, err := cache.recipe(ctx, n.recipeID, tenantID)
		if err != nil {
			return nil, err
		}
		if recipe == nil {
			result.Warnings = append(result.Warnings, ExplosionWarning{Kind: WarningMissingRecipe, RecipeID: n.recipeID})
			continue
		}
		if name == "" && n.recipeID == sale.RecipeID {
			name = recipe.Name
		}

		components, err := cache.recipeComponents(ctx, n.recipeID)
		if err != nil {
			return nil, err
		}

		path := n.path.with(n.recipeID)
		// 逆順で積むことで構成要素の定義順に処理する
		for i := len(components) - 1; i >= 0; i-- {
			c := components[i]
			switch {
			case c.SubRecipe != nil:
				stack = append(stack, node{
					recipeID:   c.SubRecipe.RecipeID,
					multiplier: c.SubRecipe.Qty * n.multiplier,
					path:       path,
				})
			case c.Item != nil:
				stack = append(stack, node{
					item:       c.Item,
					multiplier: n.multiplier,
					path:       path,
				})
			}
		}
	}

	return result, nil
}

func (e *ExplosionEngine) emitLeaf(
	ctx context.Context,
	result *Explosion,
	index map[string]int,
	n node,
	sale MenuItemSale,
	menuName string,
	tenantID string,
	cache *graphCache,
	table *ConversionTable,
) ([]ExplosionWarning, error) {
	var warnings []ExplosionWarning

	item, err := cache.item(ctx, n.item.ItemID)
	if err != nil {
		return nil, err
	}
	// 他テナントの品目は存在しないものとして扱う
	if item == nil || item.TenantID != tenantID {
		return []ExplosionWarning{{Kind: WarningMissingItem, ItemID: n.item.ItemID}}, nil
	}

	factor, ok := table.Lookup(n.item.UnitID, item.BaseUnitID)
	if !ok {
		warnings = append(warnings, ExplosionWarning{
			Kind:       WarningConversionPassthrough,
			ItemID:     item.ID,
			FromUnitID: n.item.UnitID,
			ToUnitID:   item.BaseUnitID,
		})
	}

	yield := item.YieldPercent
	if yield <= 0 {
		yield = 100
		warnings = append(warnings, ExplosionWarning{Kind: WarningYieldDefaulted, ItemID: item.ID})
	}

	qty := n.item.Qty * n.multiplier * factor * 100 / yield
	cost := qty * item.PricePerUnit

	if i, seen := index[item.ID]; seen {
		u := &result.Usages[i]
		u.RequiredQtyBaseUnit += qty
		u.CostAtSale += cost
		u.SourceTrace[0].ContributedQty += qty
		return warnings, nil
	}

	index[item.ID] = len(result.Usages)
	result.Usages = append(result.Usages, IngredientUsage{
		InventoryItemID:     item.ID,
		ItemName:            item.Name,
		RequiredQtyBaseUnit: qty,
		CostAtSale:          cost,
		SourceTrace: []SourceTrace{{
			MenuItemID:     sale.MenuItemID,
			MenuItemName:   menuName,
			SoldQty:        sale.QuantitySold,
			ContributedQty: qty,
		}},
	})
	return warnings, nil
}

func (e *ExplosionEngine) report(tenantID string, sale MenuItemSale, warnings []ExplosionWarning) {
	for _, w := range warnings {
		e.metrics.warning(w.Kind)
		e.logger.Warn("レシピ展開で問題を検出しました",
			zap.String("tenant_id", tenantID),
			zap.String("menu_item_id", sale.MenuItemID),
			zap.String("recipe_id", sale.RecipeID),
			zap.String("warning", w.String()),
		)
	}
}

// AggregateUsages merges usages from several explosions. Quantities and costs of
// the same item are summed and traces concatenated; first-seen order is kept.
// 複数の展開結果を品目単位で集約（初出順を維持）
func AggregateUsages(groups ...[]IngredientUsage) []IngredientUsage {
	var out []IngredientUsage
	index := make(map[string]int)
	for _, group := range groups {
		for _, u := range group {
			if i, ok := index[u.InventoryItemID]; ok {
				out[i].RequiredQtyBaseUnit += u.RequiredQtyBaseUnit
				out[i].CostAtSale += u.CostAtSale
				out[i].SourceTrace = append(out[i].SourceTrace, u.SourceTrace...)
				continue
			}
			index[u.InventoryItemID] = len(out)
			u.SourceTrace = append([]SourceTrace(nil), u.SourceTrace...)
			out = append(out, u)
		}
	}
	return out
}

// graphCache memoises recipe graph reads for one batch. Not-found results are
// cached as nil. Concurrent misses for the same key share one storage call.
type graphCache struct {
	store RecipeStore
	group singleflight.Group

	mu         sync.RWMutex
	recipes    map[string]*Recipe
	components map[string][]RecipeComponent
	items      map[string]*InventoryItem
}

func newGraphCache(store RecipeStore) *graphCache {
	return &graphCache{
		store:      store,
		recipes:    make(map[string]*Recipe),
		components: make(map[string][]RecipeComponent),
		items:      make(map[string]*InventoryItem),
	}
}

func (c *graphCache) recipe(ctx context.Context, recipeID, tenantID string) (*Recipe, error) {
	key := tenantID + "/" + recipeID
	c.mu.RLock()
	r, ok := c.recipes[key]
	c.mu.RUnlock()
	if ok {
		return r, nil
	}

	v, err, _ := c.group.Do("recipe:"+key, func() (interface{}, error) {
		r, err := c.store.GetRecipe(ctx, recipeID, tenantID)
		if err != nil {
			if !IsNotFound(err) {
				return nil, NewStorageError("get_recipe", "レシピ取得に失敗しました", err)
			}
			r = nil
		}
		c.mu.Lock()
		c.recipes[key] = r
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Recipe), nil
}

func (c *graphCache) recipeComponents(ctx context.Context, recipeID string) ([]RecipeComponent, error) {
	c.mu.RLock()
	comps, ok := c.components[recipeID]
	c.mu.RUnlock()
	if ok {
		return comps, nil
	}

	v, err, _ := c.group.Do("components:"+recipeID, func() (interface{}, error) {
		comps, err := c.store.GetRecipeComponents(ctx, recipeID)
		if err != nil && !IsNotFound(err) {
			return nil, NewStorageError("get_recipe_components", "レシピ構成要素の取得に失敗しました", err)
		}
		c.mu.Lock()
		c.components[recipeID] = comps
		c.mu.Unlock()
		return comps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]RecipeComponent), nil
}

func (c *graphCache) item(ctx context.Context, itemID string) (*InventoryItem, error) {
	c.mu.RLock()
	it, ok := c.items[itemID]
	c.mu.RUnlock()
	if ok {
		return it, nil
	}

	v, err, _ := c.group.Do("item:"+itemID, func() (interface{}, error) {
		it, err := c.store.GetInventoryItem(ctx, itemID)
		if err != nil {
			if !IsNotFound(err) {
				return nil, NewStorageError("get_inventory_item", "在庫品目の取得に失敗しました", err)
			}
			it = nil
		}
		c.mu.Lock()
		c.items[itemID] = it
		c.mu.Unlock()
		return it, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*InventoryItem), nil
}
