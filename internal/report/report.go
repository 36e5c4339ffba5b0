// Package report renders sweep results as Markdown, PNG charts and
// interactive HTML.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cae-assist/cae-cli/internal/optimize"
)

// Summary aggregates the successful trials of a sweep.
type Summary struct {
	Trials    int
	Succeeded int
	Failed    int
	MeanScore float64
	MinScore  float64
	MaxScore  float64
	TotalTime float64
	MeanTime  float64
	BestIndex int
	BestValue float64
	BestScore float64
	HasBest   bool
	BestPath  string
}

// Summarize computes sweep statistics. Failed trials count toward the
// totals and elapsed time but not toward the score statistics.
func Summarize(result *optimize.Result) Summary {
	s := Summary{Trials: len(result.History)}

	var scores []float64
	for _, rec := range result.History {
		s.TotalTime += rec.ElapsedSeconds
		if rec.Failed() {
			s.Failed++
			continue
		}
		s.Succeeded++
		scores = append(scores, rec.QualityScore)
	}
	if s.Trials > 0 {
		s.MeanTime = s.TotalTime / float64(s.Trials)
	}
	if len(scores) > 0 {
		s.MeanScore = stat.Mean(scores, nil)
		s.MinScore = floats.Min(scores)
		s.MaxScore = floats.Max(scores)
	}
	if best, ok := result.Best(); ok {
		s.HasBest = true
		s.BestIndex = best.Index
		s.BestValue = best.ParameterValue
		s.BestScore = best.QualityScore
		s.BestPath = best.ArtifactPath
	}
	return s
}

// Markdown renders the sweep as a human-readable report.
func Markdown(result *optimize.Result) string {
	s := Summarize(result)
	var b strings.Builder

	fmt.Fprintf(&b, "# Parameter Optimization Report\n\n")
	fmt.Fprintf(&b, "## Overview\n\n")
	fmt.Fprintf(&b, "- **Parameter**: %s\n", result.Spec.Name)
	fmt.Fprintf(&b, "- **Range**: %g ~ %g mm (%s)\n", result.Spec.Min, result.Spec.Max, result.Spec.Mode)
	fmt.Fprintf(&b, "- **Trials**: %d (%d succeeded, %d failed)\n", s.Trials, s.Succeeded, s.Failed)
	fmt.Fprintf(&b, "- **Generated**: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	if s.HasBest {
		fmt.Fprintf(&b, "## Best Result\n\n")
		fmt.Fprintf(&b, "- **Trial**: %d\n", s.BestIndex)
		fmt.Fprintf(&b, "- **Parameter value**: %.2f mm\n", s.BestValue)
		fmt.Fprintf(&b, "- **Quality score**: %.1f/100\n", s.BestScore)
		if s.BestPath != "" {
			fmt.Fprintf(&b, "- **Artifact**: `%s`\n", s.BestPath)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("## Best Result\n\nNo trial produced a usable geometry.\n\n")
	}

	b.WriteString("## Trials\n\n")
	b.WriteString("| Trial | Value (mm) | Score | Time (s) | Status |\n")
	b.WriteString("|-------|------------|-------|----------|--------|\n")
	for _, rec := range result.History {
		status := "ok"
		scoreCell := fmt.Sprintf("%.1f", rec.QualityScore)
		if rec.Failed() {
			status = rec.Error
			scoreCell = "-"
		} else if s.HasBest && rec.Index == s.BestIndex {
			scoreCell += " *"
		}
		fmt.Fprintf(&b, "| %d | %.2f | %s | %.2f | %s |\n",
			rec.Index, rec.ParameterValue, scoreCell, rec.ElapsedSeconds, status)
	}

	if s.Succeeded > 0 {
		b.WriteString("\n## Statistics\n\n")
		fmt.Fprintf(&b, "- **Mean score**: %.1f\n", s.MeanScore)
		fmt.Fprintf(&b, "- **Score range**: %.1f ~ %.1f\n", s.MinScore, s.MaxScore)
		fmt.Fprintf(&b, "- **Total time**: %.2fs\n", s.TotalTime)
		fmt.Fprintf(&b, "- **Mean trial time**: %.2fs\n", s.MeanTime)
	}

	return b.String()
}

// SaveMarkdown writes the Markdown report to path.
func SaveMarkdown(result *optimize.Result, path string) error {
	if err := os.WriteFile(path, []byte(Markdown(result)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
