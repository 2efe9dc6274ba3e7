package exporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sosidash/internal/dataset"
)

func exportTable() *dataset.Table {
	return dataset.NewTable([][]string{
		{"Language", "Has Linguist?", "Notes"},
		{"Farsi", "NO", "court hearing"},
		{"Spanish", "YES", "value, with comma"},
	})
}

func TestCSVWriter_ExportTable(t *testing.T) {
	writer := NewCSVWriter(nil)

	data, err := writer.ExportTable(exportTable())
	require.NoError(t, err)

	t.Run("starts with UTF-8 BOM", func(t *testing.T) {
		assert.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	})

	t.Run("header then data rows", func(t *testing.T) {
		body := bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
		lines := bytes.Split(bytes.TrimRight(body, "\n"), []byte("\n"))
		require.Len(t, lines, 3)
		assert.Equal(t, "Language,Has Linguist?,Notes", string(lines[0]))
	})

	t.Run("commas are quoted", func(t *testing.T) {
		assert.Contains(t, string(data), `"value, with comma"`)
	})
}

func TestCSVWriter_WriteTable_RaggedRows(t *testing.T) {
	table := dataset.NewTable([][]string{
		{"Language", "Priority", "Notes"},
		{"Farsi"},
		{"Spanish", "NORMAL", "ok", "extra cell"},
	})

	var buf bytes.Buffer
	writer := NewCSVWriter(nil)
	require.NoError(t, writer.WriteTable(&buf, table, WriteOptions{}))

	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)

	// Short rows are padded and long rows truncated to the header
	// width, so the round trip is rectangular.
	require.Equal(t, 2, parsed.Len())
	assert.Equal(t, []string{"Farsi", "", ""}, parsed.Rows[0])
	assert.Equal(t, []string{"Spanish", "NORMAL", "ok"}, parsed.Rows[1])
}

func TestCSVWriter_WriteTable_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	writer := NewCSVWriter(nil)
	require.NoError(t, writer.WriteTable(&buf, dataset.NewTable(nil), WriteOptions{}))
	assert.Zero(t, buf.Len())
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "sosi_analysis_20250309.csv", ExportFilename(now))
}

func TestReadCSV_RoundTrip(t *testing.T) {
	writer := NewCSVWriter(nil)
	original := exportTable()

	data, err := writer.ExportTable(original)
	require.NoError(t, err)

	parsed, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, original.Columns, parsed.Columns)
	require.Equal(t, original.Len(), parsed.Len())
	assert.Equal(t, original.Rows[1][2], parsed.Rows[1][2])
}

func TestReadCSV_WithoutBOM(t *testing.T) {
	parsed, err := ReadCSV(bytes.NewReader([]byte("Language\nFarsi\n")))
	require.NoError(t, err)
	assert.Equal(t, []string{"Language"}, parsed.Columns)
	assert.Equal(t, 1, parsed.Len())
}
