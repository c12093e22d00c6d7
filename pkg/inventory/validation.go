package inventory

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID IDの形式をバリデーション
func ValidateID(field, id string) error {
	if id == "" {
		return NewValidationError(field, "IDが空です", id)
	}
	if len(id) > 255 {
		return NewValidationError(field, "IDが長すぎます", id)
	}
	// 英数字、ハイフン、アンダースコアのみ許可
	if !idPattern.MatchString(id) {
		return NewValidationError(field, "IDに無効な文字が含まれています", id)
	}
	return nil
}

// ValidateQuantity 数量をバリデーション
func ValidateQuantity(field string, quantity float64) error {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return NewValidationError(field, "数量が数値ではありません", fmt.Sprintf("%v", quantity))
	}
	if quantity < 0 {
		err := NewValidationError(field, "負の数量は許可されていません", fmt.Sprintf("%v", quantity))
		err.Err = ErrNegativeQuantity
		return err
	}
	return nil
}

// ValidateItemName 品目名をバリデーション
func ValidateItemName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "品目名が空です", name)
	}
	if len(name) > 500 {
		return NewValidationError("name", "品目名が長すぎます", name)
	}
	return nil
}

// ValidateUnitCost 単価をバリデーション
func ValidateUnitCost(unitCost float64) error {
	if unitCost < 0 {
		return NewValidationError("unit_cost", "単価は0以上である必要があります", fmt.Sprintf("%.2f", unitCost))
	}
	if unitCost > 999999999.99 {
		return NewValidationError("unit_cost", "単価が有効範囲を超えています", fmt.Sprintf("%.2f", unitCost))
	}
	return nil
}

// ValidateYieldPercent 歩留まり率をバリデーション（0は100%扱いとして許容）
func ValidateYieldPercent(yield float64) error {
	if yield < 0 || yield > 100 {
		return NewValidationError("yield_percent", "歩留まり率は0〜100の範囲である必要があります", fmt.Sprintf("%v", yield))
	}
	return nil
}

func validateSale(sale MenuItemSale, tenantID string) error {
	if err := ValidateID("tenant_id", tenantID); err != nil {
		return err
	}
	if err := ValidateID("recipe_id", sale.RecipeID); err != nil {
		return err
	}
	return ValidateQuantity("quantity_sold", sale.QuantitySold)
}

// ValidateRunRequest 理論使用量ランのリクエストをバリデーション
func ValidateRunRequest(req RunRequest) error {
	if err := ValidateID("tenant_id", req.TenantID); err != nil {
		return err
	}
	if err := ValidateID("store_id", req.StoreID); err != nil {
		return err
	}
	if req.BusinessDate.IsZero() {
		return NewValidationError("business_date", "営業日が指定されていません", "")
	}
	for i, s := range req.Sales {
		if err := ValidateID("recipe_id", s.RecipeID); err != nil {
			return NewValidationError(fmt.Sprintf("sales[%d].recipe_id", i), err.(*ValidationError).Message, s.RecipeID)
		}
		if err := ValidateQuantity("quantity_sold", s.QuantitySold); err != nil {
			vErr := NewValidationError(fmt.Sprintf("sales[%d].quantity_sold", i), "販売数量が不正です", fmt.Sprintf("%v", s.QuantitySold))
			vErr.Err = errors.Unwrap(err)
			return vErr
		}
	}
	return nil
}

// ValidateVendorProduct 仕入先商品行をバリデーション
func ValidateVendorProduct(p VendorProduct) error {
	if strings.TrimSpace(p.VendorSKU) == "" {
		return NewValidationError("vendor_sku", "仕入先SKUが空です", p.VendorSKU)
	}
	if len(p.VendorSKU) > 255 {
		return NewValidationError("vendor_sku", "仕入先SKUが長すぎます", p.VendorSKU)
	}
	if err := ValidateItemName(p.Name); err != nil {
		return err
	}
	if p.CaseSize < 0 {
		return NewValidationError("case_size", "ケース入数は0以上である必要があります", fmt.Sprintf("%v", p.CaseSize))
	}
	return ValidateUnitCost(p.Price)
}

// ValidateInventoryItem 在庫品目をバリデーション
func ValidateInventoryItem(item *InventoryItem) error {
	if item == nil {
		return NewValidationError("item", "品目が指定されていません", "nil")
	}
	if err := ValidateID("id", item.ID); err != nil {
		return err
	}
	if err := ValidateID("tenant_id", item.TenantID); err != nil {
		return err
	}
	if err := ValidateItemName(item.Name); err != nil {
		return err
	}
	if err := ValidateUnitCost(item.PricePerUnit); err != nil {
		return err
	}
	return ValidateYieldPercent(item.YieldPercent)
}
