package dataset

import "strings"

// Search returns the rows of the table where at least one cell
// contains the query, case-insensitively. The result shares the input
// table's header. Zero matches is a normal outcome and yields an empty
// table. Cost is O(rows x columns); no index is built, which is fine
// for the expected table sizes.
func Search(t *Table, query string) *Table {
	result := &Table{}
	if t != nil {
		result.Columns = t.Columns
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if t == nil || q == "" {
		return result
	}

	for _, row := range t.Rows {
		for _, cell := range row {
			if strings.Contains(strings.ToLower(cell), q) {
				result.Rows = append(result.Rows, row)
				break
			}
		}
	}
	return result
}
