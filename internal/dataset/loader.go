package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	apperrors "sosidash/internal/errors"
)

// Logical table keys produced by the Loader.
const (
	KeyMaster    = "master"
	KeyAnalysis  = "analysis"
	KeySummary   = "summary"
	KeyLinguists = "linguists"
)

// Named sheets expected in the analysis workbook.
const (
	SheetAllHistorical = "All Historical Data"
	SheetSummary       = "Summary"
)

// ErrSheetNotFound marks a named sheet missing from an otherwise
// readable workbook. It is the expected, non-fatal outcome that
// triggers the default-sheet fallback, and must never be conflated
// with an unreadable file.
var ErrSheetNotFound = errors.New("sheet not found")

// Input is one uploaded workbook, held entirely in memory.
type Input struct {
	Filename string
	Data     []byte
}

// Inputs groups the up to three optional uploads by role. A nil field
// means that file was not provided, which is a supported state.
type Inputs struct {
	Master    *Input
	Analysis  *Input
	Linguists *Input
}

// Empty reports whether no file was provided at all.
func (in Inputs) Empty() bool {
	return in.Master == nil && in.Analysis == nil && in.Linguists == nil
}

// Store holds the loaded tables for one session, keyed by logical
// name, plus the content fingerprint they were loaded from. Tables are
// immutable once the Store is built.
type Store struct {
	tables      map[string]*Table
	fingerprint string
}

// Table returns the table under the given logical key.
func (s *Store) Table(key string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tables[key]
	return t, ok
}

// Keys returns the logical keys present, in Loader key order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.tables))
	for _, k := range []string{KeyMaster, KeyAnalysis, KeySummary, KeyLinguists} {
		if _, ok := s.tables[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Fingerprint returns the content fingerprint the Store was loaded from.
func (s *Store) Fingerprint() string {
	if s == nil {
		return ""
	}
	return s.fingerprint
}

// LoadReport describes the outcome of one Load call: which tables
// loaded, their row counts, whether the Summary sheet was found, and
// any per-file failures. A failed file never prevents the others from
// loading.
type LoadReport struct {
	Tables        []string          `json:"tables"`
	RowCounts     map[string]int    `json:"row_counts"`
	SummaryLoaded bool              `json:"summary_loaded"`
	Failed        map[string]string `json:"failed,omitempty"`
	FromCache     bool              `json:"from_cache"`
}

// Loader reads uploaded workbooks into in-memory tables.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a workbook loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With(slog.String("component", "dataset_loader"))}
}

// Load reads the provided workbooks into a Store. Each file loads
// independently: an unreadable workbook is recorded in the report and
// surfaced per file, while the remaining inputs still load. Load
// returns an error only when every provided file failed.
func (l *Loader) Load(ctx context.Context, in Inputs) (*Store, *LoadReport, error) {
	store := &Store{
		tables:      make(map[string]*Table),
		fingerprint: Fingerprint(in),
	}
	report := &LoadReport{
		RowCounts: make(map[string]int),
		Failed:    make(map[string]string),
	}

	provided := 0

	if in.Master != nil {
		provided++
		if err := l.loadSingle(ctx, store, KeyMaster, in.Master); err != nil {
			report.Failed[KeyMaster] = err.Error()
		}
	}

	if in.Analysis != nil {
		provided++
		if err := l.loadAnalysis(ctx, store, report, in.Analysis); err != nil {
			report.Failed[KeyAnalysis] = err.Error()
		}
	}

	if in.Linguists != nil {
		provided++
		if err := l.loadSingle(ctx, store, KeyLinguists, in.Linguists); err != nil {
			report.Failed[KeyLinguists] = err.Error()
		}
	}

	for _, key := range store.Keys() {
		report.Tables = append(report.Tables, key)
		if t, ok := store.Table(key); ok {
			report.RowCounts[key] = t.Len()
		}
	}

	if provided > 0 && len(report.Tables) == 0 {
		return nil, report, apperrors.NewParsingError("no uploaded file could be read", nil)
	}

	l.logger.InfoContext(ctx, "workbooks loaded",
		slog.Any("tables", report.Tables),
		slog.Bool("summary_loaded", report.SummaryLoaded),
		slog.Int("failed", len(report.Failed)))

	return store, report, nil
}

// loadSingle reads the default sheet of a workbook into the given key.
func (l *Loader) loadSingle(ctx context.Context, store *Store, key string, in *Input) error {
	f, err := l.open(in)
	if err != nil {
		l.logger.WarnContext(ctx, "unreadable workbook",
			slog.String("key", key),
			slog.String("filename", in.Filename),
			slog.String("error", err.Error()))
		return err
	}
	defer f.Close()

	table, err := readDefaultSheet(f)
	if err != nil {
		return err
	}

	store.tables[key] = table
	l.logger.DebugContext(ctx, "table loaded",
		slog.String("key", key),
		slog.String("filename", in.Filename),
		slog.Int("rows", table.Len()))
	return nil
}

// loadAnalysis reads the analysis workbook. It tries the two named
// sheets first; when either is missing it falls back to the default
// sheet for the analysis key only, with no summary table. Any other
// read failure is surfaced as unreadable input.
func (l *Loader) loadAnalysis(ctx context.Context, store *Store, report *LoadReport, in *Input) error {
	f, err := l.open(in)
	if err != nil {
		l.logger.WarnContext(ctx, "unreadable analysis workbook",
			slog.String("filename", in.Filename),
			slog.String("error", err.Error()))
		return err
	}
	defer f.Close()

	analysis, errAnalysis := readNamedSheet(f, SheetAllHistorical)
	summary, errSummary := readNamedSheet(f, SheetSummary)

	switch {
	case errAnalysis == nil && errSummary == nil:
		store.tables[KeyAnalysis] = analysis
		store.tables[KeySummary] = summary
		report.SummaryLoaded = true

	case errors.Is(errAnalysis, ErrSheetNotFound) || errors.Is(errSummary, ErrSheetNotFound):
		l.logger.InfoContext(ctx, "named sheet missing, falling back to default sheet",
			slog.String("filename", in.Filename))
		table, err := readDefaultSheet(f)
		if err != nil {
			return err
		}
		store.tables[KeyAnalysis] = table

	case errAnalysis != nil:
		return errAnalysis

	default:
		return errSummary
	}

	return nil
}

// open parses workbook bytes, mapping any excelize failure to the
// unreadable-input error class.
func (l *Loader) open(in *Input) (*excelize.File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(in.Data))
	if err != nil {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("failed to open workbook %s", in.Filename), err)
	}
	return f, nil
}

// readNamedSheet reads one sheet by exact name. A missing sheet yields
// ErrSheetNotFound; a read failure on an existing sheet is a parsing
// error.
func readNamedSheet(f *excelize.File, sheet string) (*Table, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx == -1 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	return NewTable(rows), nil
}

// readDefaultSheet reads the workbook's first sheet.
func readDefaultSheet(f *excelize.File) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParsingError("workbook has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheets[0]), err)
	}
	return NewTable(rows), nil
}
