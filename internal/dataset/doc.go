// Package dataset loads uploaded spreadsheet workbooks into immutable
// in-memory tables and provides the row-scan search over them.
//
// The Loader maps up to three optional uploads (master, analysis,
// linguists) to logical table keys. The analysis workbook is read via
// its two named sheets with an explicit fallback to the default sheet
// when a named sheet is missing; a missing sheet (ErrSheetNotFound) is
// deliberately distinct from an unreadable file, which surfaces as a
// parsing error for that file only.
package dataset
