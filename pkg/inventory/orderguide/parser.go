// Package orderguide reads vendor order guides into vendor products.
package orderguide

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX
// CSV・XLSX以外のファイル形式の場合のエラー
var ErrUnsupportedFormat = errors.New("CSVまたはXLSXファイルのみ対応しています")

// ErrMissingColumn is returned when a required column has no recognised header
// 必須列のヘッダーが見つからない場合のエラー
var ErrMissingColumn = errors.New("必須列が見つかりません")

type column int

const (
	colSKU column = iota
	colName
	colCategory
	colCaseSize
	colUnit
	colPrice
)

// headerAliases maps normalised header text to the column it denotes
var headerAliases = map[string]column{
	"sku":              colSKU,
	"vendor sku":       colSKU,
	"item number":      colSKU,
	"item #":           colSKU,
	"item no":          colSKU,
	"product code":     colSKU,
	"name":             colName,
	"description":      colName,
	"item description": colName,
	"product":          colName,
	"category":         colCategory,
	"category code":    colCategory,
	"class":            colCategory,
	"pack":             colCaseSize,
	"pack size":        colCaseSize,
	"case size":        colCaseSize,
	"case qty":         colCaseSize,
	"unit":             colUnit,
	"uom":              colUnit,
	"unit of measure":  colUnit,
	"price":            colPrice,
	"case price":       colPrice,
	"cost":             colPrice,
}

// RowError reports a data row that could not be converted
// 変換できなかったデータ行
type RowError struct {
	Row     int    `json:"row"` // 1始まり（ヘッダー行を含む）
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("%d行目: %s", e.Row, e.Message)
}

// Result holds the products read from an order guide and the rejected rows
// 発注ガイドの読込結果
type Result struct {
	Products []inventory.VendorProduct `json:"products"`
	Errors   []RowError                `json:"errors"`
}

// Parse reads an order guide, choosing the format from the file extension
// ファイル拡張子から形式を判定して発注ガイドを読み込む
func Parse(r io.Reader, filename string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// ParseCSV reads a CSV order guide whose first record is the header
// ヘッダー付きCSVの発注ガイドを読み込む
func ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("CSVヘッダーの読み込みに失敗しました: %w", err)
	}
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSVの読み込みに失敗しました（%d行目）: %w", len(rows)+2, err)
		}
		rows = append(rows, record)
	}
	return convert(header, rows)
}

// ParseXLSX reads the first sheet of an XLSX order guide
// XLSXの最初のシートから発注ガイドを読み込む
func ParseXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("Excelファイルを開けません: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("Excelファイルにシートがありません")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("シートの読み込みに失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("ヘッダー行がありません")
	}
	return convert(rows[0], rows[1:])
}

func convert(header []string, rows [][]string) (*Result, error) {
	index, err := resolveHeader(header)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Products: make([]inventory.VendorProduct, 0, len(rows)),
		Errors:   []RowError{},
	}
	for i, record := range rows {
		rowNum := i + 2
		if blank(record) {
			continue
		}
		product, err := toProduct(record, index)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if err := inventory.ValidateVendorProduct(product); err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.Products = append(result.Products, product)
	}
	return result, nil
}

// resolveHeader maps each known column to its position; SKU and name are required
func resolveHeader(header []string) (map[column]int, error) {
	index := make(map[column]int)
	for i, h := range header {
		key := normalizeHeader(h)
		col, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}
	if _, ok := index[colSKU]; !ok {
		return nil, fmt.Errorf("%w: sku", ErrMissingColumn)
	}
	if _, ok := index[colName]; !ok {
		return nil, fmt.Errorf("%w: name", ErrMissingColumn)
	}
	return index, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSuffix(strings.TrimSpace(h), "*")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ", ".", "").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

func toProduct(record []string, index map[column]int) (inventory.VendorProduct, error) {
	field := func(c column) string {
		i, ok := index[c]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	product := inventory.VendorProduct{
		VendorSKU:    field(colSKU),
		Name:         field(colName),
		CategoryCode: field(colCategory),
		Unit:         field(colUnit),
	}

	var err error
	if product.CaseSize, err = parseNumber(field(colCaseSize)); err != nil {
		return product, fmt.Errorf("ケース入数が数値ではありません: %q", field(colCaseSize))
	}
	if product.Price, err = parseNumber(field(colPrice)); err != nil {
		return product, fmt.Errorf("価格が数値ではありません: %q", field(colPrice))
	}
	return product, nil
}

// parseNumber accepts currency symbols and thousands separators; empty is zero
func parseNumber(s string) (float64, error) {
	s = strings.NewReplacer("$", "", "¥", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
