package web

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/iitrpratibha/ml-wine-quality-classification/pipeline"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	wineRed   = color.RGBA{R: 0x8B, A: 0xFF}
	notGoodFg = color.RGBA{R: 0xCD, G: 0x5C, B: 0x5C, A: 0xFF}
	goodFg    = color.RGBA{R: 0x90, G: 0xEE, B: 0x90, A: 0xFF}
)

// grid adapts a row-major matrix to plotter.GridXYZ with cells on integer
// coordinates, so nominal axis ticks line up with them.
type grid struct {
	rows, cols int
	at         func(r, c int) float64
}

func (g grid) Dims() (c, r int) { return g.cols, g.rows }
func (g grid) Z(c, r int) float64 { return g.at(r, c) }
func (g grid) X(c int) float64 { return float64(c) }
func (g grid) Y(r int) float64 { return float64(r) }

func (g grid) labels(format string) plotter.XYLabels {
	var out plotter.XYLabels
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			out.XYs = append(out.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			out.Labels = append(out.Labels, fmt.Sprintf(format, g.at(r, c)))
		}
	}
	return out
}

func renderPNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, errors.Wrap(err, "render chart")
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "render chart")
	}
	return buf.Bytes(), nil
}

func heatmap(p *plot.Plot, g grid, pal palette.Palette, min, max float64, format string) error {
	hm := plotter.NewHeatMap(g, pal)
	hm.Min, hm.Max = min, max
	p.Add(hm)
	labels, err := plotter.NewLabels(g.labels(format))
	if err != nil {
		return errors.Wrap(err, "heatmap labels")
	}
	p.Add(labels)
	return nil
}

// MetricBarChart draws one metric for every model as horizontal bars,
// sorted ascending so the best model is on top.
func MetricBarChart(s *pipeline.Summary, m pipeline.Metric) ([]byte, error) {
	if s.Len() == 0 {
		return nil, errors.NewValueError("MetricBarChart", "no models")
	}
	type entry struct {
		name  string
		value float64
	}
	entries := make([]entry, 0, s.Len())
	for _, name := range s.Names() {
		sc, _ := s.Get(name)
		entries = append(entries, entry{name, sc.Get(m)})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].value < entries[j].value })

	values := make(plotter.Values, len(entries))
	names := make([]string, len(entries))
	var labels plotter.XYLabels
	for i, e := range entries {
		values[i] = e.value
		names[i] = e.name
		labels.XYs = append(labels.XYs, plotter.XY{X: e.value + 0.01, Y: float64(i)})
		labels.Labels = append(labels.Labels, fmt.Sprintf("%.4f", e.value))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Comparison Across Models", m)
	p.X.Label.Text = string(m)
	p.Y.Label.Text = "Model"
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "bar chart")
	}
	bars.Horizontal = true
	bars.Color = wineRed
	bars.LineStyle.Width = 0
	p.Add(bars, plotter.NewGrid())
	vl, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, errors.Wrap(err, "bar labels")
	}
	p.Add(vl)
	p.NominalY(names...)
	p.X.Min = math.Min(0, p.X.Min)
	p.X.Max = math.Max(1.1, p.X.Max)
	return renderPNG(p, 10*vg.Inch, 6*vg.Inch)
}

// MetricHeatmap draws every metric (rows) of every model (columns).
func MetricHeatmap(s *pipeline.Summary) ([]byte, error) {
	if s.Len() == 0 {
		return nil, errors.NewValueError("MetricHeatmap", "no models")
	}
	table := s.Table()
	g := grid{
		rows: len(pipeline.Metrics),
		cols: len(table),
		at:   func(r, c int) float64 { return table[c].Values[r] },
	}
	min, max := 0.0, 1.0
	for _, row := range table {
		for _, v := range row.Values {
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
	}

	p := plot.New()
	p.Title.Text = "All Metrics Heatmap"
	if err := heatmap(p, g, palette.Heat(32, 1), min, max, "%.4f"); err != nil {
		return nil, err
	}
	names := make([]string, len(table))
	for i, row := range table {
		names[i] = row.Name
	}
	metrics := make([]string, len(pipeline.Metrics))
	for i, m := range pipeline.Metrics {
		metrics[i] = string(m)
	}
	p.NominalX(names...)
	p.NominalY(metrics...)
	return renderPNG(p, 10*vg.Inch, 6*vg.Inch)
}

// ConfusionChart draws a 2×2 confusion matrix with true labels on the Y
// axis.
func ConfusionChart(cm *mat.Dense, title string, classNames []string) ([]byte, error) {
	r, c := cm.Dims()
	if r != len(classNames) || c != len(classNames) {
		return nil, errors.NewDimensionError("ConfusionChart", len(classNames), r, 0)
	}
	g := grid{rows: r, cols: c, at: cm.At}
	max := mat.Max(cm)
	if max == 0 {
		max = 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted Label"
	p.Y.Label.Text = "True Label"
	if err := heatmap(p, g, palette.Heat(32, 1), 0, max, "%.0f"); err != nil {
		return nil, err
	}
	p.NominalX(classNames...)
	p.NominalY(classNames...)
	return renderPNG(p, 8*vg.Inch, 6*vg.Inch)
}

// DistributionChart draws the number of rows predicted per class.
func DistributionChart(notGood, good int) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Distribution of Predictions"
	p.Y.Label.Text = "Count"
	for i, bar := range []struct {
		n   int
		col color.Color
	}{{notGood, notGoodFg}, {good, goodFg}} {
		b, err := plotter.NewBarChart(plotter.Values{float64(bar.n)}, vg.Points(60))
		if err != nil {
			return nil, errors.Wrap(err, "bar chart")
		}
		b.XMin = float64(i)
		b.Color = bar.col
		p.Add(b)
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: 0, Y: float64(notGood)}, {X: 1, Y: float64(good)}},
		Labels: []string{fmt.Sprint(notGood), fmt.Sprint(good)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "bar labels")
	}
	p.Add(labels, plotter.NewGrid())
	p.NominalX("Not Good", "Good")
	p.Y.Min = 0
	p.Y.Max = math.Max(1, 1.1*float64(max(notGood, good)))
	return renderPNG(p, 8*vg.Inch, 5*vg.Inch)
}

// CorrelationHeatmap draws a Pearson correlation matrix on a diverging
// blue-red scale centred on zero.
func CorrelationHeatmap(corr mat.Symmetric, names []string) ([]byte, error) {
	n := corr.SymmetricDim()
	if n != len(names) {
		return nil, errors.NewDimensionError("CorrelationHeatmap", len(names), n, 0)
	}
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)

	p := plot.New()
	p.Title.Text = "Feature Correlation Matrix"
	if err := heatmap(p, grid{rows: n, cols: n, at: corr.At}, cmap.Palette(64), -1, 1, "%.2f"); err != nil {
		return nil, err
	}
	p.NominalX(names...)
	p.NominalY(names...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	return renderPNG(p, 12*vg.Inch, 10*vg.Inch)
}
