package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"sosidash/internal/dataset"
)

// utf8BOM helps Excel recognize UTF-8 encoded CSV output.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// CSVWriter serializes in-memory tables to CSV.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteTable writes a table to w: header row first, then data rows.
// Ragged rows are padded to the header width so the output is
// rectangular and re-parseable.
func (c *CSVWriter) WriteTable(w io.Writer, t *dataset.Table, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if len(t.Columns) > 0 {
		if err := writer.Write(t.Columns); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	width := len(t.Columns)
	for i, row := range t.Rows {
		record := row
		if len(row) < width {
			record = make([]string, width)
			copy(record, row)
		} else if len(row) > width && width > 0 {
			record = row[:width]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportTable renders a table to a CSV byte blob with BOM, the form
// offered as a download.
func (c *CSVWriter) ExportTable(t *dataset.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.WriteTable(&buf, t, WriteOptions{BOMPrefix: true}); err != nil {
		return nil, err
	}

	c.logger.Debug("table exported",
		slog.Int("rows", t.Len()),
		slog.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// ExportFilename returns the dated download name for an analysis
// export.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("sosi_analysis_%s.csv", now.Format("20060102"))
}

// ReadCSV parses CSV data back into a table, tolerating a leading
// UTF-8 BOM and ragged rows. It is the inverse of WriteTable and
// exists so exports can be round-trip verified.
func ReadCSV(r io.Reader) (*dataset.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV data: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV data: %w", err)
	}
	return dataset.NewTable(rows), nil
}
