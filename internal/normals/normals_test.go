package normals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpeters/masb/internal/geom"
	"github.com/rpeters/masb/internal/kdtree"
)

func planeGrid(n int, spacing float32) []geom.Vec3 {
	var points []geom.Vec3
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			points = append(points, geom.Vec3{X: float32(x) * spacing, Y: float32(y) * spacing, Z: 0})
		}
	}
	return points
}

func TestEstimateOnFlatPlaneIsVertical(t *testing.T) {
	points := planeGrid(6, 1)
	idx := kdtree.Build(points, false)

	out, err := Estimate(points, idx, 8)
	require.NoError(t, err)
	require.Len(t, out, len(points))

	for _, n := range out {
		require.InDelta(t, 1.0, float64(n.Z*n.Z), 1e-4)
		require.InDelta(t, 0.0, float64(n.X), 1e-3)
		require.InDelta(t, 0.0, float64(n.Y), 1e-3)
	}
}

func TestEstimateReturnsUnitNormals(t *testing.T) {
	points := planeGrid(5, 1)
	for i := range points {
		points[i].Z = float32(math.Sin(float64(points[i].X)))
	}
	idx := kdtree.Build(points, false)

	out, err := Estimate(points, idx, 6)
	require.NoError(t, err)
	for _, n := range out {
		l := geom.Length(n)
		require.InDelta(t, 1.0, float64(l), 1e-3)
	}
}

func TestEstimateRejectsNonPositiveK(t *testing.T) {
	points := planeGrid(3, 1)
	idx := kdtree.Build(points, false)

	_, err := Estimate(points, idx, 0)
	require.Error(t, err)
}

func TestEstimateEmptyInput(t *testing.T) {
	idx := kdtree.Build(nil, false)
	out, err := Estimate(nil, idx, 5)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestEstimateDegenerateRepeatedPointFallsBack(t *testing.T) {
	points := []geom.Vec3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	idx := kdtree.Build(points, false)

	out, err := Estimate(points, idx, 3)
	require.NoError(t, err)
	for _, n := range out {
		require.InDelta(t, 1.0, float64(geom.Length(n)), 1e-6)
	}
}
