package http

import (
	"context"

	"sosidash/internal/analytics"
	"sosidash/internal/dataset"
	"sosidash/internal/services"
)

// DashboardServiceInterface defines the dashboard operations the
// handlers depend on. Satisfied by services.DashboardService; narrowed
// here so handlers can be tested against a mock.
type DashboardServiceInterface interface {
	CreateSession(ctx context.Context, in dataset.Inputs) (*services.SessionInfo, error)
	Session(ctx context.Context, id string) (*services.SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
	Overview(ctx context.Context, id string) (analytics.OverviewStats, error)
	Languages(ctx context.Context, id, statusFilter string, limit int) ([]analytics.LanguageStat, error)
	Trends(ctx context.Context, id string, dr *analytics.DateRange) (*services.TrendsResponse, error)
	Gaps(ctx context.Context, id string, limit int) ([]analytics.GapEntry, error)
	SearchRecords(ctx context.Context, id, table, query string) (*dataset.Table, error)
	Table(ctx context.Context, id, name string) (*dataset.Table, error)
	ExportCSV(ctx context.Context, id, table string) (string, []byte, error)
}
