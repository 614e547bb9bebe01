package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/golovatskygroup/data-lens/internal/apperr"
)

func TestLoadCSVDetectsSemicolon(t *testing.T) {
	f, err := LoadCSV(strings.NewReader("a;b\n1;2\n"), "semi.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Columns())
}

func TestLoadCSVEmptyInputIsUploadError(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""), "empty.csv", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Upload))
}

func TestLoadCSVRaggedRowIsUploadError(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("a,b\n1,2,3\n"), "ragged.csv", Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpload, apperr.KindOf(err))
}

func TestLoadCSVMaxRows(t *testing.T) {
	f, err := LoadCSV(strings.NewReader("a\n1\n2\n3\n"), "x.csv", Options{MaxRows: 2})
	require.NoError(t, err)
	rows, _ := f.Shape()
	assert.Equal(t, 2, rows)
}

func TestLoadXLSX(t *testing.T) {
	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]any{"city", "temp"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]any{"Recife", 31}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A3", &[]any{"Curitiba", 18}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	f, err := Read(bytes.NewReader(buf.Bytes()), "cities.xlsx", FormatXLSX, Options{})
	require.NoError(t, err)

	rows, cols := f.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	dt, err := f.DType("temp")
	require.NoError(t, err)
	assert.Equal(t, Int64, dt)
}

func TestLoadFileByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))
	f, err := LoadFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "data.csv", f.Name())

	assert.Equal(t, FormatXLSX, FormatFromName("Report.XLSX"))
	assert.Equal(t, FormatCSV, FormatFromName("data.tsv"))
}

func TestFormatSummary(t *testing.T) {
	f, err := LoadCSV(strings.NewReader("a,b\n1,x\n1,x\n2,\n"), "x.csv", Options{})
	require.NoError(t, err)
	s := f.Summary()

	assert.Equal(t, "(3, 2)", s.FormatShape())
	assert.Contains(t, s.FormatTypes(), "int64")
	assert.Contains(t, s.FormatNulls(), "b    1")
	assert.Contains(t, s.FormatDescribe(), "count")
	assert.Contains(t, f.HeadMarkdown(2), "|  0 |")
	assert.Equal(t, "- a (int64)\n- b (object)", f.ColumnInfo())
}
