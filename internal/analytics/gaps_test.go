package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sosidash/internal/dataset"
)

func TestGapAnalyzer_Analyze(t *testing.T) {
	ctx := context.Background()
	analyzer := NewGapAnalyzer(nil, DefaultGapConfig())

	t.Run("only languages at the cutoff are reported", func(t *testing.T) {
		// Farsi has 6 unfulfilled requests, Spanish 1, Klingon 1:
		// only Farsi clears the cutoff of 5, landing in the HIGH tier.
		entries := analyzer.Analyze(ctx, historicalTable(), 0)
		require.Len(t, entries, 1)
		assert.Equal(t, GapEntry{
			Language:         "Farsi",
			UnfulfilledCount: 6,
			Tier:             TierHigh,
		}, entries[0])
	})

	t.Run("critical tier at ten unfulfilled", func(t *testing.T) {
		rows := [][]string{{"Language", "Has Linguist?"}}
		for i := 0; i < 10; i++ {
			rows = append(rows, []string{"Dari", "NO"})
		}
		for i := 0; i < 5; i++ {
			rows = append(rows, []string{"Pashto", "NO"})
		}
		entries := analyzer.Analyze(ctx, dataset.NewTable(rows), 0)
		require.Len(t, entries, 2)
		assert.Equal(t, TierCritical, entries[0].Tier)
		assert.Equal(t, "Dari", entries[0].Language)
		assert.Equal(t, TierHigh, entries[1].Tier)
	})

	t.Run("fulfilled requests are excluded", func(t *testing.T) {
		rows := [][]string{{"Language", "Has Linguist?"}}
		for i := 0; i < 6; i++ {
			rows = append(rows, []string{"Somali", "YES"})
		}
		entries := analyzer.Analyze(ctx, dataset.NewTable(rows), 0)
		assert.Empty(t, entries)
	})

	t.Run("missing columns yield empty result", func(t *testing.T) {
		table := dataset.NewTable([][]string{
			{"Language"},
			{"Farsi"},
		})
		assert.Empty(t, analyzer.Analyze(ctx, table, 0))
	})

	t.Run("limit truncates", func(t *testing.T) {
		rows := [][]string{{"Language", "Has Linguist?"}}
		for i := 0; i < 7; i++ {
			rows = append(rows, []string{"Dari", "NO"})
		}
		for i := 0; i < 6; i++ {
			rows = append(rows, []string{"Pashto", "NO"})
		}
		entries := analyzer.Analyze(ctx, dataset.NewTable(rows), 1)
		require.Len(t, entries, 1)
		assert.Equal(t, "Dari", entries[0].Language)
	})
}

func TestGapAnalyzer_Tiers(t *testing.T) {
	analyzer := NewGapAnalyzer(nil, DefaultGapConfig())

	tests := []struct {
		count int
		want  string
	}{
		{10, TierCritical},
		{15, TierCritical},
		{9, TierHigh},
		{5, TierHigh},
		{4, TierMedium},
		{3, TierMedium},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, analyzer.tier(tt.count), "count %d", tt.count)
	}
}

func TestGapAnalyzer_CustomCutoff(t *testing.T) {
	ctx := context.Background()

	// Lowering the cutoff to 3 makes the MEDIUM tier reachable.
	analyzer := NewGapAnalyzer(nil, GapConfig{
		MinUnfulfilled:    3,
		CriticalThreshold: 10,
		HighThreshold:     5,
		MediumThreshold:   3,
	})

	rows := [][]string{{"Language", "Has Linguist?"}}
	for i := 0; i < 3; i++ {
		rows = append(rows, []string{"Tigrinya", "NO"})
	}
	entries := analyzer.Analyze(ctx, dataset.NewTable(rows), 0)
	require.Len(t, entries, 1)
	assert.Equal(t, TierMedium, entries[0].Tier)
}

func TestNewGapAnalyzer_Defaults(t *testing.T) {
	analyzer := NewGapAnalyzer(nil, GapConfig{})
	assert.Equal(t, DefaultGapConfig(), analyzer.config)
}
