// Package normals estimates per-point surface normals from unoriented
// coordinates via local PCA: for each point, the eigenvector of its
// neighborhood's covariance matrix associated with the smallest eigenvalue.
package normals

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/rpeters/masb/internal/geom"
	"github.com/rpeters/masb/internal/kdtree"
	"github.com/rpeters/masb/internal/workerpool"
)

// Estimate computes one unit normal per point in points, using the k
// nearest neighbors (the point itself counts as one of the k+1 results
// retrieved from idx) to build a local covariance matrix whose
// smallest-eigenvalue eigenvector becomes the estimated normal.
//
// If len(points) < k+1, all available points are used. Orientation is
// unspecified: Estimate never flips a normal to point outward or inward,
// per the data model's contract that orientation is a caller concern.
func Estimate(points []geom.Vec3, idx *kdtree.Index, k int) ([]geom.Vec3, error) {
	if k <= 0 {
		return nil, fmt.Errorf("normals: k must be positive, got %d", k)
	}

	n := len(points)
	out := make([]geom.Vec3, n)
	if n == 0 {
		return out, nil
	}

	stats := &workerpool.Stats{}
	workerpool.Run(n, func(i int) {
		w := stats.Worker()
		neighbors := idx.Nearest(points[i], k+1, true)
		out[i] = estimateOne(points, neighbors)
		stats.Commit(w)
	})

	return out, nil
}

// estimateOne computes the PCA normal for one point's neighborhood.
func estimateOne(points []geom.Vec3, neighbors []kdtree.Neighbor) geom.Vec3 {
	if len(neighbors) == 0 {
		return geom.Vec3{}
	}

	var centroid geom.Vec3
	for _, nb := range neighbors {
		centroid = geom.Add(centroid, points[nb.Index])
	}
	centroid = geom.Scale(centroid, 1/float32(len(neighbors)))

	var c00, c01, c02, c11, c12, c22 float64
	for _, nb := range neighbors {
		d := geom.Sub(points[nb.Index], centroid)
		x, y, z := float64(d.X), float64(d.Y), float64(d.Z)
		c00 += x * x
		c01 += x * y
		c02 += x * z
		c11 += y * y
		c12 += y * z
		c22 += z * z
	}
	m := float64(len(neighbors))
	cov := mat.NewSymDense(3, []float64{
		c00 / m, c01 / m, c02 / m,
		c01 / m, c11 / m, c12 / m,
		c02 / m, c12 / m, c22 / m,
	})

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		// Factorization did not succeed: no direction is distinguished,
		// fall back to an arbitrary axis. (An all-zero covariance, e.g. a
		// single repeated point, factorizes and is resolved by the
		// eigenvector tie-break below.)
		return geom.Vec3{X: 0, Y: 0, Z: 1}
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	type eigPair struct {
		value float64
		col   int
	}
	pairs := make([]eigPair, len(values))
	for i, v := range values {
		pairs[i] = eigPair{value: v, col: i}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].value != pairs[j].value {
			return pairs[i].value < pairs[j].value
		}
		// Deterministic tie-break for degenerate (e.g. collinear)
		// neighborhoods: lexicographically smallest eigenvector wins.
		return lexLess(vectors.ColView(pairs[i].col), vectors.ColView(pairs[j].col))
	})

	smallest := pairs[0].col
	v := vectors.ColView(smallest)
	n := geom.Vec3{X: float32(v.AtVec(0)), Y: float32(v.AtVec(1)), Z: float32(v.AtVec(2))}
	return geom.Normalize(n)
}

func lexLess(a, b mat.Vector) bool {
	for i := 0; i < a.Len(); i++ {
		if a.AtVec(i) != b.AtVec(i) {
			return a.AtVec(i) < b.AtVec(i)
		}
	}
	return false
}
