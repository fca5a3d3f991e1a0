package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"clinicdash/internal/services/aggregation"
)

func TestWriteBucketsXLSX(t *testing.T) {
	buckets := []aggregation.Bucket{
		{Key: "2024-02", Label: "2024年2月", Revenue: 100000, Count: 2, UnitPrice: 50000, NewCount: 1, ExistingCount: 1},
		{Key: "2024-03", Label: "2024年3月", Revenue: 150000, Count: 2, UnitPrice: 75000, ExistingCount: 1, OtherCount: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBucketsXLSX(&buf, "月別売上", buckets))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "月別売上", rows[0][0])
	assert.Equal(t, Columns, rows[1])
	assert.Equal(t, "2024年2月", rows[2][0])
	assert.Equal(t, "合計", rows[4][0])

	// Raw values, not the formatted display strings
	cum, err := f.GetCellValue(sheetName, "H4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "250000", cum)

	unit, err := f.GetCellValue(sheetName, "D5", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "62500", unit)
}

func TestWriteBucketsXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBucketsXLSX(&buf, "空", nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	unit, err := f.GetCellValue(sheetName, "D3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "0", unit)
}
