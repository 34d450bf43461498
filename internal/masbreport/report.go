// Package masbreport renders diagnostic charts for a masb run: a k-d tree
// depth histogram (gonum/plot, for `masb inspect --plot`) and an HTML
// summary of the medial radius distribution (go-echarts, for
// `masb ma --html-report`). Neither chart is load-bearing for the
// algorithm; both are debugging aids.
package masbreport

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rpeters/masb/internal/geom"
)

// PlotLeafDepths renders a histogram of the per-leaf depth values (one
// sample per leaf, all equal in a balanced tree, but informative once the
// bucket size forces an unbalanced split) to a PNG at path.
func PlotLeafDepths(depths []float64, path string) error {
	p := plot.New()
	p.Title.Text = "k-d tree leaf depth distribution"
	p.X.Label.Text = "depth"
	p.Y.Label.Text = "leaves"

	values := make(plotter.Values, len(depths))
	copy(values, depths)

	hist, err := plotter.NewHist(values, 16)
	if err != nil {
		return fmt.Errorf("masbreport: building histogram: %w", err)
	}
	p.Add(hist)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("masbreport: saving %s: %w", path, err)
	}
	return nil
}

// RadiusSummary is the per-side aggregate fed into WriteHTMLReport.
type RadiusSummary struct {
	Label  string
	Radii  []float32
}

// WriteHTMLReport writes a self-contained HTML bar chart comparing the
// radius distribution of each side (inside/outside) to path.
func WriteHTMLReport(sides []RadiusSummary, path string) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Medial ball radius distribution"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "bucket"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)

	buckets, labels := histBuckets(sides, 20)
	bar.SetXAxis(labels)
	for _, side := range sides {
		bar.AddSeries(side.Label, toBarData(buckets[side.Label]))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("masbreport: create %s: %w", path, err)
	}
	defer f.Close()

	if err := bar.Render(f); err != nil {
		return fmt.Errorf("masbreport: render %s: %w", path, err)
	}
	return nil
}

func histBuckets(sides []RadiusSummary, n int) (map[string][]int, []string) {
	var maxR float32
	for _, s := range sides {
		for _, r := range s.Radii {
			if r > maxR {
				maxR = r
			}
		}
	}
	if maxR == 0 {
		maxR = 1
	}

	labels := make([]string, n)
	width := maxR / float32(n)
	for i := 0; i < n; i++ {
		labels[i] = fmt.Sprintf("%.2f", float32(i)*width)
	}

	out := make(map[string][]int, len(sides))
	for _, s := range sides {
		counts := make([]int, n)
		for _, r := range s.Radii {
			b := int(r / width)
			if b >= n {
				b = n - 1
			}
			if b < 0 {
				b = 0
			}
			counts[b]++
		}
		out[s.Label] = counts
	}
	return out, labels
}

func toBarData(counts []int) []opts.BarData {
	out := make([]opts.BarData, len(counts))
	for i, c := range counts {
		out[i] = opts.BarData{Value: c}
	}
	return out
}

// Radii extracts the per-point radius ‖c-p‖ for a side's centers.
func Radii(points, centers []geom.Vec3) []float32 {
	out := make([]float32, len(points))
	for i := range points {
		out[i] = geom.Length(geom.Sub(centers[i], points[i]))
	}
	return out
}
