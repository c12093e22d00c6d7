package inventory

import (
	"errors"
	"fmt"
)

// Common costing errors
// 共通の原価計算エラー定義

var (
	// ErrItemNotFound is returned when an inventory item doesn't exist
	// 在庫品目が存在しない場合のエラー
	ErrItemNotFound = errors.New("在庫品目が見つかりません")

	// ErrRecipeNotFound is returned when a recipe doesn't exist for the tenant
	// レシピが存在しない場合のエラー
	ErrRecipeNotFound = errors.New("レシピが見つかりません")

	// ErrStoreNotFound is returned when a store doesn't exist
	// 店舗が存在しない場合のエラー
	ErrStoreNotFound = errors.New("店舗が見つかりません")

	// ErrCountNotFound is returned when an inventory count doesn't exist
	// 棚卸記録が存在しない場合のエラー
	ErrCountNotFound = errors.New("棚卸記録が見つかりません")

	// ErrRunNotFound is returned when a theoretical usage run doesn't exist
	// 理論使用量ランが存在しない場合のエラー
	ErrRunNotFound = errors.New("理論使用量ランが見つかりません")

	// ErrNegativeQuantity is returned when a negative quantity is provided
	// 負の数量が指定された場合のエラー
	ErrNegativeQuantity = errors.New("数量は0以上である必要があります")

	// ErrDuplicateItem is returned when trying to create an item that already exists
	// 既に存在する品目を作成しようとした場合のエラー
	ErrDuplicateItem = errors.New("品目は既に存在します")

	// ErrDuplicateVendorItem is returned when a vendor SKU is already linked
	// 仕入先SKUが既に紐付け済みの場合のエラー
	ErrDuplicateVendorItem = errors.New("仕入先品目は既に存在します")

	// ErrTransactionFailed is returned when a transaction fails
	// トランザクション失敗時のエラー
	ErrTransactionFailed = errors.New("トランザクションが失敗しました")
)

// IsNotFound reports whether err signals a missing reference
// 参照先が存在しないことを示すエラーか判定
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrRecipeNotFound) ||
		errors.Is(err, ErrStoreNotFound) ||
		errors.Is(err, ErrCountNotFound) ||
		errors.Is(err, ErrRunNotFound)
}

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
	Err     error  `json:"-"`       // 該当するセンチネルエラー
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// BusinessRuleError represents a business rule violation
// ビジネスルール違反を表現
type BusinessRuleError struct {
	Rule    string `json:"rule"`    // ルール名
	Message string `json:"message"` // エラーメッセージ
	Context string `json:"context"` // コンテキスト情報
}

func (e BusinessRuleError) Error() string {
	return fmt.Sprintf("ビジネスルール違反 [%s]: %s (コンテキスト: %s)", e.Rule, e.Message, e.Context)
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e StorageError) Unwrap() error {
	return e.Cause
}

// RunError wraps the failure that moved a theoretical usage run to failed
// ランを失敗状態にした原因エラーをラップ
type RunError struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"` // explode / persist
	Cause error  `json:"cause"`
}

func (e RunError) Error() string {
	return fmt.Sprintf("理論使用量ラン失敗 [%s:%s]: %v", e.RunID, e.Stage, e.Cause)
}

func (e RunError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewBusinessRuleError creates a new business rule error
// 新しいビジネスルールエラーを作成
func NewBusinessRuleError(rule, message, context string) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewRunError creates a new run error
// 新しいランエラーを作成
func NewRunError(runID, stage string, cause error) *RunError {
	return &RunError{
		RunID: runID,
		Stage: stage,
		Cause: cause,
	}
}
