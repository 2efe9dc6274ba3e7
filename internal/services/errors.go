package services

import "errors"

// Dashboard service errors
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Upload errors
	ErrNoFilesProvided = errors.New("no workbook files provided")

	// Table errors
	ErrTableNotFound = errors.New("table not found")

	// Query errors
	ErrInvalidStatusFilter = errors.New("invalid status filter")
	ErrInvalidDateRange    = errors.New("invalid date range")
)
