// Package etl cleans the scraped master dataset into a processed CSV:
// null checking, unique record ids, category normalization, and a binary
// availability column.
package etl

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/bookdata-api/config"
	"github.com/aluiziolira/bookdata-api/models"
	"github.com/aluiziolira/bookdata-api/pipeline"
)

// numericColumns must be fully populated for the dataset to be processable.
var numericColumns = []string{"price", "rating", "stock"}

// Run executes the cleaning pipeline over cfg.InputFile and writes
// cfg.OutputFile. It fails rather than guessing when the input has missing
// numeric values; the caller decides how to surface the error.
func Run(cfg config.ETLConfig) (models.ETLSummary, error) {
	start := time.Now()
	slog.Info("starting data processing",
		slog.String("input", cfg.InputFile),
		slog.String("output", cfg.OutputFile),
	)

	header, rows, err := pipeline.ReadCSV(cfg.InputFile)
	if err != nil {
		return models.ETLSummary{}, err
	}

	if err := checkNulls(header, rows); err != nil {
		return models.ETLSummary{}, err
	}

	ids, err := uniqueIDs(len(rows))
	if err != nil {
		return models.ETLSummary{}, err
	}

	replaced := cleanCategories(header, rows, cfg)
	if err := binarizeAvailability(header, rows); err != nil {
		return models.ETLSummary{}, err
	}

	outHeader := append([]string{"id"}, header...)
	outRows := make([][]string, len(rows))
	for i, row := range rows {
		outRows[i] = append([]string{ids[i]}, row...)
	}

	if err := pipeline.WriteCSV(cfg.OutputFile, outHeader, outRows); err != nil {
		return models.ETLSummary{}, err
	}

	summary := models.ETLSummary{
		TotalRecords:       len(rows),
		ProcessedRecords:   len(outRows),
		ReplacedCategories: replaced,
		ExecutionTime:      time.Since(start),
		OutputFile:         cfg.OutputFile,
	}
	slog.Info("data processing finished",
		slog.Int("records", summary.ProcessedRecords),
		slog.Duration("elapsed", summary.ExecutionTime),
	)
	return summary, nil
}

// checkNulls rejects datasets with empty numeric fields; those indicate an
// incomplete scrape that cleaning cannot repair.
func checkNulls(header []string, rows [][]string) error {
	total := 0
	for _, col := range numericColumns {
		idx := slices.Index(header, col)
		if idx < 0 {
			return fmt.Errorf("input missing column %q", col)
		}
		count := 0
		for _, row := range rows {
			if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
				count++
			}
		}
		if count > 0 {
			slog.Error("null values found", slog.String("column", col), slog.Int("count", count))
			total += count
		}
	}
	if total > 0 {
		return fmt.Errorf("dataset contains %d null values, cleaning required", total)
	}
	return nil
}

// uniqueIDs generates n short ids, regenerating with an index prefix in the
// unlikely event of a collision.
func uniqueIDs(n int) ([]string, error) {
	ids := make([]string, n)
	seen := make(map[string]struct{}, n)
	for i := range ids {
		id := uuid.NewString()[:8]
		if _, dup := seen[id]; dup {
			id = fmt.Sprintf("%06d_%s", i, uuid.NewString()[:6])
		}
		seen[id] = struct{}{}
		ids[i] = id
	}
	if len(seen) != n {
		return nil, fmt.Errorf("generated %d ids for %d rows", len(seen), n)
	}
	return ids, nil
}

// cleanCategories replaces problematic category labels with the configured
// default and returns how many rows changed.
func cleanCategories(header []string, rows [][]string, cfg config.ETLConfig) int {
	idx := slices.Index(header, "category")
	if idx < 0 {
		return 0
	}
	replaced := 0
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if slices.Contains(cfg.ProblematicCategories, row[idx]) {
			row[idx] = cfg.DefaultCategory
			replaced++
		}
	}
	if replaced > 0 {
		slog.Info("categories normalized",
			slog.Int("replaced", replaced),
			slog.String("default", cfg.DefaultCategory),
		)
	}
	return replaced
}

// binarizeAvailability maps "yes" to "1" and anything else to "0".
func binarizeAvailability(header []string, rows [][]string) error {
	idx := slices.Index(header, "availability")
	if idx < 0 {
		return fmt.Errorf("input missing column %q", "availability")
	}
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(row[idx]), "yes") {
			row[idx] = "1"
		} else {
			row[idx] = "0"
		}
	}
	return nil
}
