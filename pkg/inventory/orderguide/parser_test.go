package orderguide

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// TestParseCSV はヘッダー別名と行エラーのテスト
func TestParseCSV(t *testing.T) {
	input := "\ufeffItem Number,Item Description,Category,Pack Size,UOM,Case Price *\n" +
		"WM-1,Whole Milk,Dairy,4,gal,\"$1,018.00\"\n" +
		",No SKU,Dairy,1,ea,1\n" +
		"TOM-25,Roma Tomato,Produce,abc,lb,20\n" +
		",,,,,\n" +
		"FL-50,AP Flour,Dry Goods,,lb,\n"

	result, err := Parse(strings.NewReader(input), "guide.CSV")
	require.NoError(t, err)

	require.Len(t, result.Products, 2)
	milk := result.Products[0]
	assert.Equal(t, "WM-1", milk.VendorSKU)
	assert.Equal(t, "Whole Milk", milk.Name)
	assert.Equal(t, "Dairy", milk.CategoryCode)
	assert.Equal(t, 4.0, milk.CaseSize)
	assert.Equal(t, "gal", milk.Unit)
	assert.Equal(t, 1018.0, milk.Price)

	flour := result.Products[1]
	assert.Equal(t, "FL-50", flour.VendorSKU)
	assert.Zero(t, flour.CaseSize)
	assert.Zero(t, flour.Price)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, 4, result.Errors[1].Row)
	assert.Contains(t, result.Errors[1].Message, "ケース入数")
}

func TestParseCSV_MissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("code,price\nA,1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

// TestParseXLSX はExcel形式の発注ガイド読込のテスト
func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"SKU", "Name", "Category", "Case Size", "Unit", "Price"},
		{"WM-1", "Whole Milk", "Dairy", 4, "gal", 18.5},
		{"SAF-1", "Saffron Threads", "Spice", 1, "oz", 40},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := Parse(&buf, "guide.xlsx")
	require.NoError(t, err)
	require.Len(t, result.Products, 2)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 18.5, result.Products[0].Price)
	assert.Equal(t, "SAF-1", result.Products[1].VendorSKU)
	assert.Equal(t, 1.0, result.Products[1].CaseSize)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse(strings.NewReader(""), "guide.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "item no", normalizeHeader(" Item No. "))
	assert.Equal(t, "vendor sku", normalizeHeader("vendor_sku *"))
	assert.Equal(t, "unit of measure", normalizeHeader("Unit-of-Measure"))
}
