package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cae-assist/cae-cli/internal/optimize"
)

// SavePlot renders quality score against parameter value as a PNG. The
// best trial is marked with a separate scatter glyph. Failed trials are
// omitted from the curve.
func SavePlot(result *optimize.Result, path string) error {
	pts := make(plotter.XYs, 0, len(result.History))
	for _, rec := range result.History {
		if rec.Failed() {
			continue
		}
		pts = append(pts, plotter.XY{X: rec.ParameterValue, Y: rec.QualityScore})
	}
	if len(pts) == 0 {
		return fmt.Errorf("no successful trials to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Quality Score vs %s", result.Spec.Name)
	p.X.Label.Text = fmt.Sprintf("%s (mm)", result.Spec.Name)
	p.Y.Label.Text = "Quality Score"
	p.Y.Min = 0
	p.Y.Max = 100

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	line.Color = color.RGBA{B: 255, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("score", line)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("build scatter: %w", err)
	}
	p.Add(scatter)

	if best, ok := result.Best(); ok {
		bestPt := plotter.XYs{{X: best.ParameterValue, Y: best.QualityScore}}
		bestMark, err := plotter.NewScatter(bestPt)
		if err != nil {
			return fmt.Errorf("build best marker: %w", err)
		}
		bestMark.GlyphStyle.Color = color.RGBA{R: 255, A: 255}
		bestMark.GlyphStyle.Radius = vg.Points(5)
		p.Add(bestMark)
		p.Legend.Add("best", bestMark)
	}

	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
