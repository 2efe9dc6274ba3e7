package services

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"sosidash/internal/analytics"
	"sosidash/internal/dataset"
	"sosidash/internal/infrastructure"
)

// buildWorkbook renders a single-sheet xlsx into memory.
func buildWorkbook(t *testing.T, sheet string, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))

	for r, row := range rows {
		cells := make([]interface{}, len(row))
		for c, v := range row {
			cells[c] = v
		}
		require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", r+1), &cells))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func analysisWorkbook(t *testing.T) []byte {
	t.Helper()
	return buildWorkbook(t, dataset.SheetAllHistorical, [][]string{
		{"Language", "Has Linguist?", "Priority", "Row Added"},
		{"Farsi", "NO", "URGENT", "2024-01-03"},
		{"Farsi", "NO", "HIGH", "2024-01-10"},
		{"Farsi", "NO", "NORMAL", "2024-02-07"},
		{"Farsi", "NO", "NORMAL", "2024-02-14"},
		{"Farsi", "NO", "NORMAL", "2024-03-06"},
		{"Spanish", "YES", "NORMAL", "2024-01-08"},
	})
}

func analysisInputs(t *testing.T) dataset.Inputs {
	t.Helper()
	return dataset.Inputs{
		Analysis: &dataset.Input{Filename: "analysis.xlsx", Data: analysisWorkbook(t)},
	}
}

func newTestService() *DashboardService {
	return NewDashboardService(nil)
}

func TestDashboardService_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("no files provided", func(t *testing.T) {
		svc := newTestService()
		_, err := svc.CreateSession(ctx, dataset.Inputs{})
		assert.ErrorIs(t, err, ErrNoFilesProvided)
	})

	t.Run("loads the analysis workbook", func(t *testing.T) {
		svc := newTestService()
		info, err := svc.CreateSession(ctx, analysisInputs(t))
		require.NoError(t, err)

		assert.NotEmpty(t, info.ID)
		assert.Contains(t, info.Report.Tables, dataset.KeyAnalysis)
		assert.False(t, info.Report.FromCache)
		assert.Equal(t, 1, svc.SessionCount())
	})

	t.Run("unreadable upload surfaces the load error", func(t *testing.T) {
		svc := newTestService()
		_, err := svc.CreateSession(ctx, dataset.Inputs{
			Master: &dataset.Input{Filename: "m.xlsx", Data: []byte("junk")},
		})
		assert.Error(t, err)
		assert.Zero(t, svc.SessionCount())
	})
}

func TestDashboardService_FingerprintCache(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	data := analysisWorkbook(t)

	first, err := svc.CreateSession(ctx, dataset.Inputs{
		Analysis: &dataset.Input{Filename: "analysis.xlsx", Data: data},
	})
	require.NoError(t, err)
	assert.False(t, first.Report.FromCache)

	t.Run("identical bytes hit the cache", func(t *testing.T) {
		second, err := svc.CreateSession(ctx, dataset.Inputs{
			Analysis: &dataset.Input{Filename: "analysis.xlsx", Data: bytes.Clone(data)},
		})
		require.NoError(t, err)
		assert.True(t, second.Report.FromCache)
		assert.NotEqual(t, first.ID, second.ID)

		// Both sessions answer queries identically.
		a, err := svc.Overview(ctx, first.ID)
		require.NoError(t, err)
		b, err := svc.Overview(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("renamed file misses the cache", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, dataset.Inputs{
			Analysis: &dataset.Input{Filename: "analysis-v2.xlsx", Data: bytes.Clone(data)},
		})
		require.NoError(t, err)
		assert.False(t, info.Report.FromCache)
	})
}

func TestDashboardService_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	big, err := svc.CreateSession(ctx, analysisInputs(t))
	require.NoError(t, err)

	small, err := svc.CreateSession(ctx, dataset.Inputs{
		Analysis: &dataset.Input{
			Filename: "small.xlsx",
			Data: buildWorkbook(t, dataset.SheetAllHistorical, [][]string{
				{"Language", "Has Linguist?"},
				{"Dari", "YES"},
			}),
		},
	})
	require.NoError(t, err)

	bigStats, err := svc.Overview(ctx, big.ID)
	require.NoError(t, err)
	smallStats, err := svc.Overview(ctx, small.ID)
	require.NoError(t, err)

	assert.Equal(t, 6, bigStats.TotalRequests)
	assert.Equal(t, 1, smallStats.TotalRequests)

	// Deleting one session leaves the other queryable.
	require.NoError(t, svc.DeleteSession(ctx, big.ID))
	_, err = svc.Overview(ctx, big.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Overview(ctx, small.ID)
	assert.NoError(t, err)
}

func TestDashboardService_DeleteSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	err := svc.DeleteSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDashboardService_Languages(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	info, err := svc.CreateSession(ctx, analysisInputs(t))
	require.NoError(t, err)

	t.Run("unfiltered", func(t *testing.T) {
		stats, err := svc.Languages(ctx, info.ID, "", 0)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "Farsi", stats[0].Language)
		assert.Equal(t, analytics.StatusNotSourceable, stats[0].Status)
	})

	t.Run("sourceable filter", func(t *testing.T) {
		stats, err := svc.Languages(ctx, info.ID, FilterSourceable, 0)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "Spanish", stats[0].Language)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := svc.Languages(ctx, info.ID, "maybe", 0)
		assert.ErrorIs(t, err, ErrInvalidStatusFilter)
	})

	t.Run("limit applies after filtering", func(t *testing.T) {
		stats, err := svc.Languages(ctx, info.ID, FilterNotSourceable, 1)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "Farsi", stats[0].Language)
	})
}

func TestDashboardService_Trends(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	// Dates and priorities live only on the master table; the analysis
	// table carries only sourcing columns.
	info, err := svc.CreateSession(ctx, dataset.Inputs{
		Master: &dataset.Input{
			Filename: "master.xlsx",
			Data: buildWorkbook(t, "Requests", [][]string{
				{"Row Added", "Priority"},
				{"2024-01-03", "URGENT"},
				{"2024-02-07", "NORMAL"},
				{"2024-02-14", "NORMAL"},
			}),
		},
		Analysis: &dataset.Input{
			Filename: "analysis.xlsx",
			Data: buildWorkbook(t, dataset.SheetAllHistorical, [][]string{
				{"Language", "Has Linguist?"},
				{"Farsi", "NO"},
				{"Spanish", "YES"},
			}),
		},
	})
	require.NoError(t, err)

	t.Run("time series come from the master table", func(t *testing.T) {
		resp, err := svc.Trends(ctx, info.ID, nil)
		require.NoError(t, err)

		require.Len(t, resp.Monthly, 2)
		assert.Equal(t, "2024-01", resp.Monthly[0].Bucket)
		assert.Equal(t, 2, resp.Monthly[1].Count)
		assert.Len(t, resp.DayOfWeek, 7)

		require.NotEmpty(t, resp.Priority)
		assert.Equal(t, "NORMAL", resp.Priority[0].Priority)
		assert.Equal(t, 2, resp.Priority[0].Count)
	})

	t.Run("status still comes from the analysis table", func(t *testing.T) {
		resp, err := svc.Trends(ctx, info.ID, nil)
		require.NoError(t, err)
		require.Len(t, resp.Status, 2)
	})

	t.Run("falls back to analysis without a master", func(t *testing.T) {
		svc := newTestService()
		info, err := svc.CreateSession(ctx, analysisInputs(t))
		require.NoError(t, err)

		resp, err := svc.Trends(ctx, info.ID, nil)
		require.NoError(t, err)
		assert.Len(t, resp.Monthly, 3)
		assert.Len(t, resp.DayOfWeek, 7)
		assert.NotEmpty(t, resp.Priority)
	})

	t.Run("inverted date range rejected", func(t *testing.T) {
		_, err := svc.Trends(ctx, info.ID, &analytics.DateRange{
			From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})
}

func TestDashboardService_Gaps(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	info, err := svc.CreateSession(ctx, analysisInputs(t))
	require.NoError(t, err)

	entries, err := svc.Gaps(ctx, info.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Farsi", entries[0].Language)
	assert.Equal(t, 5, entries[0].UnfulfilledCount)
	assert.Equal(t, analytics.TierHigh, entries[0].Tier)
}

func TestDashboardService_SearchRecords(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	info, err := svc.CreateSession(ctx, analysisInputs(t))
	require.NoError(t, err)

	t.Run("case-insensitive hits", func(t *testing.T) {
		result, err := svc.SearchRecords(ctx, info.ID, "", "farsi")
		require.NoError(t, err)
		assert.Equal(t, 5, result.Len())
	})

	t.Run("empty query matches nothing", func(t *testing.T) {
		result, err := svc.SearchRecords(ctx, info.ID, "", "")
		require.NoError(t, err)
		assert.Zero(t, result.Len())
		assert.NotEmpty(t, result.Columns)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := svc.SearchRecords(ctx, info.ID, "master", "farsi")
		assert.ErrorIs(t, err, ErrTableNotFound)
	})

	t.Run("zero matches is a normal outcome", func(t *testing.T) {
		result, err := svc.SearchRecords(ctx, info.ID, "", "klingon")
		require.NoError(t, err)
		assert.Zero(t, result.Len())
	})
}

func TestDashboardService_ExportCSV(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	svc.now = func() time.Time {
		return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	}

	info, err := svc.CreateSession(ctx, analysisInputs(t))
	require.NoError(t, err)

	t.Run("dated filename with BOM payload", func(t *testing.T) {
		filename, data, err := svc.ExportCSV(ctx, info.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "sosi_analysis_20250309.csv", filename)
		assert.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
		assert.Contains(t, string(data), "Farsi")
	})

	t.Run("unknown table", func(t *testing.T) {
		_, _, err := svc.ExportCSV(ctx, info.ID, "linguists")
		assert.ErrorIs(t, err, ErrTableNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, _, err := svc.ExportCSV(ctx, "missing", "")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

// counterValue sums the int64 data points of the named instrument.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "instrument %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestDashboardService_RecordsUploadAndSessionMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := infrastructure.CreateBusinessMetrics(provider.Meter("dashboard-test"))
	require.NoError(t, err)

	svc := newTestService()
	svc.SetMetrics(metrics)

	info, err := svc.CreateSession(ctx, analysisInputs(t))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.EqualValues(t, 1, counterValue(t, rm, "workbook_uploads_total"))
	assert.Positive(t, counterValue(t, rm, "workbook_upload_bytes_received"))
	assert.EqualValues(t, 1, counterValue(t, rm, "dashboard_active_sessions"))
	assert.Zero(t, counterValue(t, rm, "workbook_parse_errors_total"))

	t.Run("deleting the session drops the gauge", func(t *testing.T) {
		require.NoError(t, svc.DeleteSession(ctx, info.ID))

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))
		assert.Zero(t, counterValue(t, rm, "dashboard_active_sessions"))
	})

	t.Run("failed upload counts a parse error", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, dataset.Inputs{
			Master: &dataset.Input{Filename: "m.xlsx", Data: []byte("junk")},
		})
		require.Error(t, err)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))
		assert.EqualValues(t, 1, counterValue(t, rm, "workbook_parse_errors_total"))
		assert.EqualValues(t, 2, counterValue(t, rm, "workbook_uploads_total"))
	})
}

func TestDashboardService_MissingAnalysisDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	// Session holds only a master table: every analysis-backed
	// aggregation answers with empty data rather than an error.
	info, err := svc.CreateSession(ctx, dataset.Inputs{
		Master: &dataset.Input{
			Filename: "master.xlsx",
			Data: buildWorkbook(t, "Requests", [][]string{
				{"Language", "Location"},
				{"Farsi", "Houston"},
			}),
		},
	})
	require.NoError(t, err)

	stats, err := svc.Overview(ctx, info.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRequests)

	langs, err := svc.Languages(ctx, info.ID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, langs)

	gaps, err := svc.Gaps(ctx, info.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, gaps)
}
