package usecase

import (
	"fmt"
	"log"
	"sort"

	"github.com/montanaflynn/stats"

	"qgate/internal/domain"
)

// HistorySource provides per-tool issue counts from past runs, oldest first.
type HistorySource interface {
	ToolNames() ([]string, error)
	IssueSeries(tool string) ([]float64, error)
}

// TrendAnalyzer computes descriptive statistics over the recorded run history.
type TrendAnalyzer struct {
	history HistorySource
	logger  *log.Logger
}

// NewTrendAnalyzer creates a new TrendAnalyzer instance.
func NewTrendAnalyzer(history HistorySource, logger *log.Logger) *TrendAnalyzer {
	return &TrendAnalyzer{
		history: history,
		logger:  logger,
	}
}

// Analyze returns issue-count trends for the named tool, or for every
// recorded tool when tool is empty. Tools with no recorded runs are omitted.
// Results are sorted by tool name for consistent output.
func (a *TrendAnalyzer) Analyze(tool string) ([]*domain.ToolTrend, error) {
	a.logger.Println("Usecase: Computing trends from run history...")

	var names []string
	if tool != "" {
		names = []string{tool}
	} else {
		var err error
		names, err = a.history.ToolNames()
		if err != nil {
			return nil, fmt.Errorf("failed to list recorded tools: %w", err)
		}
	}

	trends := make([]*domain.ToolTrend, 0, len(names))
	for _, name := range names {
		series, err := a.history.IssueSeries(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load issue series for %s: %w", name, err)
		}
		if len(series) == 0 {
			continue
		}

		mean, err := stats.Mean(series)
		if err != nil {
			return nil, fmt.Errorf("failed to compute mean for %s: %w", name, err)
		}
		median, err := stats.Median(series)
		if err != nil {
			return nil, fmt.Errorf("failed to compute median for %s: %w", name, err)
		}
		p90, err := stats.Percentile(series, 90)
		if err != nil {
			// Percentile needs more than one sample; fall back to the only one.
			p90 = series[0]
		}

		trends = append(trends, &domain.ToolTrend{
			Tool:         name,
			Runs:         len(series),
			MeanIssues:   mean,
			MedianIssues: median,
			P90Issues:    p90,
			LastIssues:   int(series[len(series)-1]),
		})
	}

	sort.Slice(trends, func(i, j int) bool {
		return trends[i].Tool < trends[j].Tool
	})

	a.logger.Println("Usecase: Trend analysis complete.")
	return trends, nil
}
