// Package shrinkball implements the shrinking-ball algorithm: for each
// oriented input point it iteratively shrinks a tangent ball, on each side
// of the surface, until it finds a medial ball center or gives up.
package shrinkball

import (
	"fmt"
	"math"
	"time"

	"github.com/rpeters/masb/internal/geom"
	"github.com/rpeters/masb/internal/kdtree"
	"github.com/rpeters/masb/internal/workerpool"
)

// MedialResult holds the two medial centers and feature indices computed
// for every input point, aligned by index with the input PointCloud.
// QidxInside[i]/QidxOutside[i] equal i itself when that side's ball never
// converged to a genuine second contact point (the degenerate sentinel).
// Queries/QueryTime are the combined nearest-neighbor profiling counters
// across both sides of every point, the Go equivalent of masbcpp's
// nnn_counter/nnn_total_time globals, surfaced for `masb ma --stats`.
type MedialResult struct {
	Inside      []geom.Vec3
	Outside     []geom.Vec3
	QidxInside  []int
	QidxOutside []int
	Queries     int64
	QueryTime   time.Duration
}

// ShrinkBallSides runs the shrinking-ball iteration for every point in
// points, twice each: once with normals[i] (inside: the center p-n*r lies
// behind the outward normal) and once with -normals[i] (outside). idx must
// have been built over points. Results are
// written to disjoint per-index slots and require no synchronization.
func ShrinkBallSides(points, normals []geom.Vec3, idx *kdtree.Index, params Params) (MedialResult, error) {
	if len(points) != len(normals) {
		return MedialResult{}, fmt.Errorf("shrinkball: points and normals length mismatch: %d vs %d", len(points), len(normals))
	}
	if err := params.Validate(); err != nil {
		return MedialResult{}, err
	}

	n := len(points)
	res := MedialResult{
		Inside:      make([]geom.Vec3, n),
		Outside:     make([]geom.Vec3, n),
		QidxInside:  make([]int, n),
		QidxOutside: make([]int, n),
	}
	if n == 0 {
		return res, nil
	}

	stats := &workerpool.Stats{}
	workerpool.Run(n, func(i int) {
		w := stats.Worker()
		p := points[i]
		norm := normals[i]

		inC, inQ := shrinkOne(i, p, norm, points, idx, params, w)
		res.Inside[i], res.QidxInside[i] = inC, inQ

		outC, outQ := shrinkOne(i, p, geom.Scale(norm, -1), points, idx, params, w)
		res.Outside[i], res.QidxOutside[i] = outC, outQ

		stats.Commit(w)
	})

	res.Queries = stats.Queries()
	res.QueryTime = stats.Elapsed()
	return res, nil
}

// shrinkOne runs the per-side iteration described in the package doc for
// source point p (original index srcIdx) with ball normal n (already
// flipped by the caller for the outside side).
func shrinkOne(srcIdx int, p, n geom.Vec3, points []geom.Vec3, idx *kdtree.Index, params Params, w *workerpool.Worker) (geom.Vec3, int) {
	var rPrev float32 = 0
	c := p
	acceptedQidx := srcIdx
	j := 0

	for {
		start := time.Now()
		neighbors := idx.Nearest(c, 2, true)
		w.Record(time.Since(start))

		if len(neighbors) == 0 {
			return p, srcIdx
		}

		qIdx := neighbors[0].Index
		q := points[qIdx]

		if geom.Equal(q, p) {
			if rPrev == params.InitialRadius {
				return finalCenter(p, n, params.InitialRadius), srcIdx
			}
			if len(neighbors) < 2 {
				return finalCenter(p, n, params.InitialRadius), srcIdx
			}
			qIdx = neighbors[1].Index
			q = points[qIdx]
		}

		r := tangentRadius(p, n, q)

		if r < 0 {
			r = params.InitialRadius
		} else if r > params.InitialRadius {
			return finalCenter(p, n, params.InitialRadius), srcIdx
		}

		cNext := finalCenter(p, n, r)

		if params.DenoisePreserve != 0 || params.DenoisePlanar != 0 {
			sep := separationAngle(p, q, cNext)
			if j > 0 && sep < params.DenoisePreserve && r > geom.Length(geom.Sub(q, p)) {
				return finalCenter(p, n, rPrev), acceptedQidx
			}

			beta := angleBetween(geom.Sub(q, p), geom.Scale(n, -1))
			if j < 2 && beta > params.DenoisePlanar {
				return finalCenter(p, n, params.InitialRadius), srcIdx
			}
		}

		if absF(rPrev-r) < deltaConverge {
			return cNext, qIdx
		}
		if j > iterationLimit {
			return cNext, qIdx
		}

		rPrev = r
		c = cNext
		acceptedQidx = qIdx
		j++
	}
}

func finalCenter(p, n geom.Vec3, r float32) geom.Vec3 {
	return geom.Sub(p, geom.Scale(n, r))
}

// tangentRadius computes the radius of the unique ball tangent at p with
// normal n and passing through q: ||p-q||^2 / (2 * (n . (p-q))).
func tangentRadius(p, n, q geom.Vec3) float32 {
	diff := geom.Sub(p, q)
	denom := geom.Dot(n, diff)
	if denom == 0 {
		return math.MaxFloat32
	}
	return geom.SquaredLength(diff) / (2 * denom)
}

// separationAngle is the angle at c between (p-c) and (q-c).
func separationAngle(p, q, c geom.Vec3) float32 {
	return angleBetween(geom.Sub(p, c), geom.Sub(q, c))
}

// angleBetween returns the angle in radians between u and v, clamping the
// cosine to [-1, 1] to tolerate rounding. A zero-length vector is treated
// as maximally separated from everything (angle = pi).
func angleBetween(u, v geom.Vec3) float32 {
	lu, lv := geom.Length(u), geom.Length(v)
	if lu == 0 || lv == 0 {
		return math.Pi
	}
	cos := geom.Dot(u, v) / (lu * lv)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return float32(math.Acos(float64(cos)))
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
