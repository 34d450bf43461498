package masbreport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpeters/masb/internal/geom"
)

func TestPlotLeafDepthsWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depths.png")
	depths := []float64{1, 2, 2, 3, 3, 3, 4}

	require.NoError(t, PlotLeafDepths(depths, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestWriteHTMLReportWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	sides := []RadiusSummary{
		{Label: "inside", Radii: []float32{1, 2, 3, 4, 5}},
		{Label: "outside", Radii: []float32{10, 20, 30}},
	}

	require.NoError(t, WriteHTMLReport(sides, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestHistBucketsAllZeroRadii(t *testing.T) {
	sides := []RadiusSummary{{Label: "inside", Radii: []float32{0, 0, 0}}}
	buckets, labels := histBuckets(sides, 5)

	require.Len(t, labels, 5)
	require.Equal(t, 3, buckets["inside"][0])
}

func TestRadii(t *testing.T) {
	points := []geom.Vec3{{0, 0, 0}, {1, 0, 0}}
	centers := []geom.Vec3{{0, 0, 3}, {1, 4, 0}}

	got := Radii(points, centers)
	require.InDelta(t, 3.0, float64(got[0]), 1e-6)
	require.InDelta(t, 4.0, float64(got[1]), 1e-6)
}
