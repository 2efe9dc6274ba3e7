package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"sosidash/internal/dataset"
)

// weekdays in calendar order, the fixed output order for day-of-week
// volume regardless of input contents.
var weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// trendDateColumns are tried in order when locating the date column
// driving the time-based volume charts.
var trendDateColumns = []string{
	dataset.ColumnRowAdded,
	dataset.ColumnRequestDate,
	dataset.ColumnHearingDate,
}

// dateLayouts are tried in order when coercing spreadsheet date cells.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"Jan 2, 2006",
}

// Aggregator computes derived statistics from loaded tables. Every
// method is pure over its inputs: a missing expected column yields an
// empty result, never an error.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger.With(slog.String("component", "aggregator"))}
}

// LanguageCounts groups the table by Language and returns per-language
// request counts ordered by descending count, ties broken by first
// appearance. limit <= 0 means no limit.
func (a *Aggregator) LanguageCounts(ctx context.Context, t *dataset.Table, limit int) []LanguageStat {
	stats := []LanguageStat{}
	col, ok := t.ColumnIndex(dataset.ColumnLanguage)
	if !ok {
		return stats
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range t.Rows {
		lang := t.Cell(row, col)
		if lang == "" {
			continue
		}
		if _, seen := counts[lang]; !seen {
			order = append(order, lang)
		}
		counts[lang]++
	}

	for _, lang := range order {
		stats = append(stats, LanguageStat{Language: lang, RequestCount: counts[lang]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].RequestCount > stats[j].RequestCount
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}

	a.logger.DebugContext(ctx, "language counts computed",
		slog.Int("languages", len(stats)))
	return stats
}

// SourcingStatus merges per-language sourcing status onto
// LanguageCounts: Sourceable when any row for the language has
// Has Linguist? == YES. When the Has Linguist? column is absent the
// counts are returned with empty status, a left join in spirit.
func (a *Aggregator) SourcingStatus(ctx context.Context, t *dataset.Table, limit int) []LanguageStat {
	stats := a.LanguageCounts(ctx, t, limit)

	langCol, okLang := t.ColumnIndex(dataset.ColumnLanguage)
	linguistCol, okLinguist := t.ColumnIndex(dataset.ColumnHasLinguist)
	if !okLang || !okLinguist {
		return stats
	}

	sourceable := make(map[string]bool)
	for _, row := range t.Rows {
		lang := t.Cell(row, langCol)
		if lang == "" {
			continue
		}
		if t.Cell(row, linguistCol) == dataset.HasLinguistYes {
			sourceable[lang] = true
		}
	}

	for i := range stats {
		if sourceable[stats[i].Language] {
			stats[i].Status = StatusSourceable
		} else {
			stats[i].Status = StatusNotSourceable
		}
	}
	return stats
}

// FulfillmentRate returns the percentage of rows with
// Has Linguist? == YES. The rate is 0 for an empty table and the
// second return is false when the column is absent (rate undefined).
func (a *Aggregator) FulfillmentRate(ctx context.Context, t *dataset.Table) (float64, bool) {
	col, ok := t.ColumnIndex(dataset.ColumnHasLinguist)
	if !ok {
		return 0, false
	}

	total := t.Len()
	if total == 0 {
		return 0, true
	}

	fulfilled := 0
	for _, row := range t.Rows {
		if t.Cell(row, col) == dataset.HasLinguistYes {
			fulfilled++
		}
	}
	return float64(fulfilled) / float64(total) * 100, true
}

// Overview computes the executive summary metrics over the analysis
// table.
func (a *Aggregator) Overview(ctx context.Context, t *dataset.Table) OverviewStats {
	stats := OverviewStats{TotalRequests: t.Len()}

	if rate, ok := a.FulfillmentRate(ctx, t); ok {
		stats.FulfillmentRate = &rate

		col, _ := t.ColumnIndex(dataset.ColumnHasLinguist)
		unfulfilled := 0
		for _, row := range t.Rows {
			if t.Cell(row, col) == dataset.HasLinguistNo {
				unfulfilled++
			}
		}
		stats.UnfulfilledRequests = &unfulfilled
	}

	if col, ok := t.ColumnIndex(dataset.ColumnLanguage); ok {
		unique := make(map[string]struct{})
		for _, row := range t.Rows {
			if lang := t.Cell(row, col); lang != "" {
				unique[lang] = struct{}{}
			}
		}
		stats.UniqueLanguages = len(unique)
	}

	return stats
}

// StatusDistribution counts rows by Has Linguist? value, relabeled for
// display: YES becomes Sourceable, NO becomes Not Sourceable, any
// other value is kept as-is.
func (a *Aggregator) StatusDistribution(ctx context.Context, t *dataset.Table) []StatusSlice {
	slices := []StatusSlice{}
	col, ok := t.ColumnIndex(dataset.ColumnHasLinguist)
	if !ok {
		return slices
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range t.Rows {
		v := t.Cell(row, col)
		if v == "" {
			continue
		}
		label := v
		switch v {
		case dataset.HasLinguistYes:
			label = StatusSourceable
		case dataset.HasLinguistNo:
			label = StatusNotSourceable
		}
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}

	for _, label := range order {
		slices = append(slices, StatusSlice{Status: label, Count: counts[label]})
	}
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].Count > slices[j].Count
	})
	return slices
}

// MonthlyVolume buckets rows by the calendar month of their Row Added
// date (falling back to Date of request, then Hearing Date when the
// column is absent), in chronological order. Rows with a missing or
// unparsable date are dropped; rows outside the optional date range
// are excluded.
func (a *Aggregator) MonthlyVolume(ctx context.Context, t *dataset.Table, dr *DateRange) []VolumePoint {
	points := []VolumePoint{}
	col, ok := dateColumn(t)
	if !ok {
		return points
	}

	counts := make(map[string]int)
	dropped := 0
	for _, row := range t.Rows {
		added, ok := ParseDate(t.Cell(row, col))
		if !ok {
			dropped++
			continue
		}
		if !dr.Contains(added) {
			continue
		}
		counts[added.Format("2006-01")]++
	}

	months := make([]string, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	// Year-month strings sort chronologically.
	sort.Strings(months)

	for _, m := range months {
		points = append(points, VolumePoint{Bucket: m, Count: counts[m]})
	}

	if dropped > 0 {
		a.logger.DebugContext(ctx, "rows dropped from monthly volume",
			slog.Int("dropped", dropped))
	}
	return points
}

// DayOfWeekVolume buckets rows by the weekday of their Row Added date.
// The output always has exactly seven entries in calendar order
// Monday through Sunday, absent days filled with zero.
func (a *Aggregator) DayOfWeekVolume(ctx context.Context, t *dataset.Table, dr *DateRange) []VolumePoint {
	counts := make(map[string]int, len(weekdays))

	if col, ok := dateColumn(t); ok {
		for _, row := range t.Rows {
			added, ok := ParseDate(t.Cell(row, col))
			if !ok || !dr.Contains(added) {
				continue
			}
			counts[added.Weekday().String()]++
		}
	}

	points := make([]VolumePoint, 0, len(weekdays))
	for _, day := range weekdays {
		points = append(points, VolumePoint{Bucket: day, Count: counts[day]})
	}
	return points
}

// PriorityDistribution counts rows by Priority value, descending.
// Known labels carry their fixed chart color; unknown labels are
// counted uncolored.
func (a *Aggregator) PriorityDistribution(ctx context.Context, t *dataset.Table) []PrioritySlice {
	slices := []PrioritySlice{}
	col, ok := t.ColumnIndex(dataset.ColumnPriority)
	if !ok {
		return slices
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range t.Rows {
		p := t.Cell(row, col)
		if p == "" {
			continue
		}
		if _, seen := counts[p]; !seen {
			order = append(order, p)
		}
		counts[p]++
	}

	for _, p := range order {
		slices = append(slices, PrioritySlice{
			Priority: p,
			Count:    counts[p],
			Color:    priorityColors[p],
		})
	}
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].Count > slices[j].Count
	})
	return slices
}

// LocationDistribution counts rows by Location, falling back to the
// Notes column when Location is absent, returning the top limit
// entries by descending count.
func (a *Aggregator) LocationDistribution(ctx context.Context, t *dataset.Table, limit int) []LocationStat {
	stats := []LocationStat{}
	col, ok := t.ColumnIndex(dataset.ColumnLocation)
	if !ok {
		col, ok = t.ColumnIndex(dataset.ColumnNotes)
	}
	if !ok {
		return stats
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range t.Rows {
		loc := t.Cell(row, col)
		if loc == "" {
			continue
		}
		if _, seen := counts[loc]; !seen {
			order = append(order, loc)
		}
		counts[loc]++
	}

	for _, loc := range order {
		stats = append(stats, LocationStat{Location: loc, Count: counts[loc]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// dateColumn resolves the date column used for volume bucketing.
func dateColumn(t *dataset.Table) (int, bool) {
	for _, name := range trendDateColumns {
		if col, ok := t.ColumnIndex(name); ok {
			return col, true
		}
	}
	return 0, false
}

// ParseDate coerces a spreadsheet date cell, trying the known layouts
// in order. Returns false for empty or unparsable values.
func ParseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
