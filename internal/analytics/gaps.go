package analytics

import (
	"context"
	"log/slog"
	"sort"

	"sosidash/internal/dataset"
)

// GapConfig holds the gap-analysis thresholds. The defaults reproduce
// the dashboard's documented behavior: only languages with at least
// MinUnfulfilled unfulfilled requests are reported, and tiers are
// assigned from the three thresholds.
//
// Note the documented MEDIUM tier (3-4 unfulfilled) is unreachable
// under the default MinUnfulfilled of 5; the thresholds are kept
// configurable rather than silently reconciled, and Validate flags
// the inconsistency.
type GapConfig struct {
	MinUnfulfilled    int
	CriticalThreshold int
	HighThreshold     int
	MediumThreshold   int
}

// DefaultGapConfig returns the thresholds observed in production use.
func DefaultGapConfig() GapConfig {
	return GapConfig{
		MinUnfulfilled:    5,
		CriticalThreshold: 10,
		HighThreshold:     5,
		MediumThreshold:   3,
	}
}

// GapAnalyzer finds languages with enough unfulfilled requests to be
// reported as sourcing gaps.
type GapAnalyzer struct {
	config GapConfig
	logger *slog.Logger
}

// NewGapAnalyzer creates a gap analyzer, applying defaults for any
// non-positive threshold.
func NewGapAnalyzer(logger *slog.Logger, config GapConfig) *GapAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultGapConfig()
	if config.MinUnfulfilled <= 0 {
		config.MinUnfulfilled = defaults.MinUnfulfilled
	}
	if config.CriticalThreshold <= 0 {
		config.CriticalThreshold = defaults.CriticalThreshold
	}
	if config.HighThreshold <= 0 {
		config.HighThreshold = defaults.HighThreshold
	}
	if config.MediumThreshold <= 0 {
		config.MediumThreshold = defaults.MediumThreshold
	}

	g := &GapAnalyzer{
		config: config,
		logger: logger.With(slog.String("component", "gap_analyzer")),
	}
	g.validate()
	return g
}

// validate flags threshold combinations where a documented tier can
// never be assigned.
func (g *GapAnalyzer) validate() {
	if g.config.MediumThreshold < g.config.MinUnfulfilled {
		g.logger.Warn("MEDIUM tier threshold is below the reporting cutoff and will never be assigned",
			slog.Int("medium_threshold", g.config.MediumThreshold),
			slog.Int("min_unfulfilled", g.config.MinUnfulfilled))
	}
}

// Analyze filters the table to unfulfilled requests
// (Has Linguist? == NO), counts them per language, keeps languages at
// or above the reporting cutoff, and assigns priority tiers. Output is
// ordered by descending count, ties by first appearance. A missing
// Has Linguist? or Language column yields an empty result.
func (g *GapAnalyzer) Analyze(ctx context.Context, t *dataset.Table, limit int) []GapEntry {
	entries := []GapEntry{}

	langCol, okLang := t.ColumnIndex(dataset.ColumnLanguage)
	linguistCol, okLinguist := t.ColumnIndex(dataset.ColumnHasLinguist)
	if !okLang || !okLinguist {
		return entries
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range t.Rows {
		if t.Cell(row, linguistCol) != dataset.HasLinguistNo {
			continue
		}
		lang := t.Cell(row, langCol)
		if lang == "" {
			continue
		}
		if _, seen := counts[lang]; !seen {
			order = append(order, lang)
		}
		counts[lang]++
	}

	for _, lang := range order {
		count := counts[lang]
		if count < g.config.MinUnfulfilled {
			continue
		}
		entries = append(entries, GapEntry{
			Language:         lang,
			UnfulfilledCount: count,
			Tier:             g.tier(count),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UnfulfilledCount > entries[j].UnfulfilledCount
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	g.logger.DebugContext(ctx, "gap analysis complete",
		slog.Int("gaps", len(entries)))
	return entries
}

// tier maps an unfulfilled count onto a priority tier.
func (g *GapAnalyzer) tier(count int) string {
	switch {
	case count >= g.config.CriticalThreshold:
		return TierCritical
	case count >= g.config.HighThreshold:
		return TierHigh
	default:
		return TierMedium
	}
}
