package dataset

import "strings"

// Logical column names expected on the uploaded tables. Presence is
// never guaranteed; callers check with HasColumn before use.
const (
	ColumnLanguage    = "Language"
	ColumnHasLinguist = "Has Linguist?"
	ColumnPriority    = "Priority"
	ColumnRowAdded    = "Row Added"
	ColumnRequestDate = "Date of request"
	ColumnHearingDate = "Hearing Date"
	ColumnLocation    = "Location"
	ColumnNotes       = "Notes"
)

// Sourcing status values carried by the Has Linguist? column.
const (
	HasLinguistYes = "YES"
	HasLinguistNo  = "NO"
)

// Table is an immutable in-memory spreadsheet table: a header row plus
// data rows. Rows may be ragged (shorter than the header); Cell is
// bounds-safe so consumers never index rows directly.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable builds a Table from raw sheet rows. The first row becomes
// the header with surrounding whitespace trimmed from every column
// name; remaining rows are kept as-is. Empty input yields an empty
// table, not nil.
func NewTable(rows [][]string) *Table {
	t := &Table{}
	if len(rows) == 0 {
		return t
	}

	t.Columns = make([]string, len(rows[0]))
	for i, name := range rows[0] {
		t.Columns[i] = strings.TrimSpace(name)
	}
	t.Rows = rows[1:]
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	for i, col := range t.Columns {
		if col == name {
			return i, true
		}
	}
	return 0, false
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// Cell returns the trimmed value of the given column in a row, or the
// empty string when the row is too short.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
