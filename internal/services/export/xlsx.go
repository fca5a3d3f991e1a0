// Package export writes aggregate tables as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"clinicdash/internal/services/aggregation"
)

const sheetName = "集計"

const (
	colorPrimary = "#2E86AB"
	colorHeader  = "#E8F1F8"
)

// Columns is the header row of a bucket sheet
var Columns = []string{"項目", "売上", "件数", "単価", "新規", "既存", "その他", "累計"}

// WriteBucketsXLSX writes buckets as one sheet: a merged title row, the
// header, one row per bucket with its running revenue total, and a total
// row.
func WriteBucketsXLSX(w io.Writer, title string, buckets []aggregation.Bucket) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Columns))

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorPrimary}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeader}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    []excelize.Border{{Type: "bottom", Color: colorPrimary, Style: 2}},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	// 3 is the built-in "#,##0" format
	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{
		NumFmt: 3,
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "top", Color: colorPrimary, Style: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	f.MergeCell(sheetName, "A1", lastCol+"1")
	f.SetCellValue(sheetName, "A1", title)
	f.SetCellStyle(sheetName, "A1", lastCol+"1", titleStyle)
	f.SetRowHeight(sheetName, 1, 28)

	if err := f.SetSheetRow(sheetName, "A2", &Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)

	rows := aggregation.Cumulative(buckets)
	total := aggregation.Bucket{Label: "合計"}
	for i, b := range rows {
		row := i + 3
		values := []any{b.Label, b.Revenue, b.Count, b.UnitPrice, b.NewCount, b.ExistingCount, b.OtherCount, b.Cumulative}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
		f.SetCellStyle(sheetName, fmt.Sprintf("B%d", row), fmt.Sprintf("%s%d", lastCol, row), numberStyle)

		total.Revenue += b.Revenue
		total.Count += b.Count
		total.NewCount += b.NewCount
		total.ExistingCount += b.ExistingCount
		total.OtherCount += b.OtherCount
	}

	// Item-level tables count a visit once per bucket, so the total row's
	// count can exceed the number of visits.
	totalRow := len(rows) + 3
	values := []any{
		total.Label, total.Revenue, total.Count,
		aggregation.UnitPrice(total.Revenue, total.Count),
		total.NewCount, total.ExistingCount, total.OtherCount, total.Revenue,
	}
	if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", totalRow), &values); err != nil {
		return fmt.Errorf("failed to write total row: %w", err)
	}
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("%s%d", lastCol, totalRow), totalStyle)

	f.SetColWidth(sheetName, "A", "A", 24)
	f.SetColWidth(sheetName, "B", lastCol, 14)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}
