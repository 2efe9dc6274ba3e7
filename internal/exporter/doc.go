// Package exporter serializes loaded tables to CSV for download and
// offline reporting, and parses them back for round-trip checks.
package exporter
