// Command report runs the dashboard analysis as a one-shot batch job:
// it loads the spreadsheet exports from disk, computes the same
// statistics the web dashboard serves, and writes them out as CSV
// reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"sosidash/internal/analytics"
	"sosidash/internal/dataset"
	"sosidash/internal/exporter"
	"sosidash/internal/validation"
)

func main() {
	masterPath := flag.String("master", "", "path to the master requests workbook")
	analysisPath := flag.String("analysis", "", "path to the historical analysis workbook")
	linguistsPath := flag.String("linguists", "", "path to the approved linguists workbook")
	outputDir := flag.String("out", "reports", "output directory for generated CSV reports")
	flag.Parse()

	logger := slog.Default()

	if *masterPath == "" && *analysisPath == "" && *linguistsPath == "" {
		slog.Error("No input files provided",
			"hint", "pass at least one of -master, -analysis or -linguists")
		flag.Usage()
		os.Exit(1)
	}

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateOutputDirectory(*outputDir); err != nil {
		slog.Error("Output directory not usable", "dir", *outputDir, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	inputs, err := readInputs(ctx, validator, *masterPath, *analysisPath, *linguistsPath)
	if err != nil {
		slog.Error("Failed to read input files", "error", err)
		os.Exit(1)
	}

	loader := dataset.NewLoader(logger)
	store, report, err := loader.Load(ctx, inputs)
	if err != nil {
		slog.Error("Failed to load workbooks", "error", err)
		os.Exit(1)
	}
	for role, reason := range report.Failed {
		slog.Warn("Workbook failed to load", "role", role, "reason", reason)
	}
	slog.Info("Workbooks loaded",
		"tables", report.Tables,
		"summary_loaded", report.SummaryLoaded)

	analysis, ok := store.Table(dataset.KeyAnalysis)
	if !ok {
		analysis = dataset.NewTable(nil)
	}

	agg := analytics.NewAggregator(logger)
	gaps := analytics.NewGapAnalyzer(logger, analytics.DefaultGapConfig())

	overview := agg.Overview(ctx, analysis)
	languages := agg.LanguageCounts(ctx, analysis, 0)
	sourcing := agg.SourcingStatus(ctx, analysis, 0)
	gapEntries := gaps.Analyze(ctx, analysis, 0)

	csvWriter := exporter.NewCSVWriter(logger)
	now := time.Now()

	outputs := map[string]*dataset.Table{
		exporter.ExportFilename(now):                          analysis,
		fmt.Sprintf("sosi_languages_%s.csv", now.Format("20060102")): languagesTable(languages),
		fmt.Sprintf("sosi_sourcing_%s.csv", now.Format("20060102")):  sourcingTable(sourcing),
		fmt.Sprintf("sosi_gaps_%s.csv", now.Format("20060102")):      gapsTable(gapEntries),
	}

	for name, table := range outputs {
		path := filepath.Join(*outputDir, name)
		if err := writeCSV(csvWriter, path, table); err != nil {
			slog.Error("Failed to write report", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("Report written", "path", path, "rows", table.Len())
	}

	printSummary(overview, languages, gapEntries)
}

// readInputs loads the provided workbook files into memory, in
// parallel. A missing flag simply leaves its role nil.
func readInputs(ctx context.Context, validator *validation.FileValidator, masterPath, analysisPath, linguistsPath string) (dataset.Inputs, error) {
	var inputs dataset.Inputs

	g, _ := errgroup.WithContext(ctx)
	for _, f := range []struct {
		path string
		dst  **dataset.Input
	}{
		{masterPath, &inputs.Master},
		{analysisPath, &inputs.Analysis},
		{linguistsPath, &inputs.Linguists},
	} {
		if f.path == "" {
			continue
		}
		path, dst := f.path, f.dst
		g.Go(func() error {
			if err := validator.ValidateExcelFile(path); err != nil {
				return fmt.Errorf("validate %s: %w", path, err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			*dst = &dataset.Input{Filename: filepath.Base(path), Data: data}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return dataset.Inputs{}, err
	}
	return inputs, nil
}

func writeCSV(w *exporter.CSVWriter, path string, t *dataset.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	return w.WriteTable(file, t, exporter.WriteOptions{BOMPrefix: true})
}

func languagesTable(stats []analytics.LanguageStat) *dataset.Table {
	rows := [][]string{{"Language", "Request Count"}}
	for _, s := range stats {
		rows = append(rows, []string{s.Language, strconv.Itoa(s.RequestCount)})
	}
	return dataset.NewTable(rows)
}

func sourcingTable(stats []analytics.LanguageStat) *dataset.Table {
	rows := [][]string{{"Language", "Request Count", "Status"}}
	for _, s := range stats {
		rows = append(rows, []string{s.Language, strconv.Itoa(s.RequestCount), s.Status})
	}
	return dataset.NewTable(rows)
}

func gapsTable(entries []analytics.GapEntry) *dataset.Table {
	rows := [][]string{{"Language", "Unfulfilled Count", "Tier"}}
	for _, e := range entries {
		rows = append(rows, []string{e.Language, strconv.Itoa(e.UnfulfilledCount), e.Tier})
	}
	return dataset.NewTable(rows)
}

func printSummary(overview analytics.OverviewStats, languages []analytics.LanguageStat, gaps []analytics.GapEntry) {
	fmt.Println("\n=== SOSI LINGUIST ANALYSIS SUMMARY ===")
	fmt.Printf("Total requests:   %d\n", overview.TotalRequests)
	fmt.Printf("Unique languages: %d\n", overview.UniqueLanguages)
	if overview.FulfillmentRate != nil {
		fmt.Printf("Fulfillment rate: %.1f%%\n", *overview.FulfillmentRate)
	}
	if overview.UnfulfilledRequests != nil {
		fmt.Printf("Unfulfilled:      %d\n", *overview.UnfulfilledRequests)
	}

	top := languages
	if len(top) > 10 {
		top = top[:10]
	}
	if len(top) > 0 {
		fmt.Println("\nTop languages by request volume:")
		for _, s := range top {
			fmt.Printf("  %-24s %d\n", s.Language, s.RequestCount)
		}
	}

	if len(gaps) > 0 {
		fmt.Println("\nSourcing gaps:")
		for _, g := range gaps {
			fmt.Printf("  %-24s %-8s %d unfulfilled\n", g.Language, g.Tier, g.UnfulfilledCount)
		}
	}
}
