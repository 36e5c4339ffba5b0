package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cae-assist/cae-cli/internal/optimize"
)

// RenderHTML writes an interactive score-vs-value chart to w.
func RenderHTML(result *optimize.Result, w io.Writer) error {
	var xAxis []string
	var scores []opts.LineData
	for _, rec := range result.History {
		if rec.Failed() {
			continue
		}
		xAxis = append(xAxis, fmt.Sprintf("%.2f", rec.ParameterValue))
		scores = append(scores, opts.LineData{Value: rec.QualityScore})
	}
	if len(scores) == 0 {
		return fmt.Errorf("no successful trials to chart")
	}

	subtitle := fmt.Sprintf("%d trials over [%g, %g] (%s)",
		len(result.History), result.Spec.Min, result.Spec.Max, result.Spec.Mode)
	if best, ok := result.Best(); ok {
		subtitle += fmt.Sprintf(", best %.1f at %.2f mm", best.QualityScore, best.ParameterValue)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Parameter Sweep"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Quality Score vs %s", result.Spec.Name),
			Subtitle: subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: result.Spec.Name + " (mm)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Score", Min: 0, Max: 100}),
	)

	line.SetXAxis(xAxis)
	line.AddSeries("quality score", scores,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	)

	return line.Render(w)
}

// SaveHTML writes the interactive chart to path.
func SaveHTML(result *optimize.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	defer f.Close()

	if err := RenderHTML(result, f); err != nil {
		return err
	}
	return f.Close()
}
