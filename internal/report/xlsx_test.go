package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	p := BuildPivot([]Tuple{
		tuple("山田 花子", "A", 2),
		tuple("山田 花子", "B", 1),
		tuple("佐藤 一郎", "A", 1),
	})

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, p, ModeQuantity))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "合計数量", rows[0][7])
	assert.Equal(t, []string{"2", "1", "3"}, rows[1][5:])
	assert.Equal(t, "合計", rows[3][4])
	assert.Equal(t, []string{"3", "1", "4"}, rows[3][5:])
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteXLSX(&buf, BuildPivot(nil), ModeAmount), ErrNoData)
}
