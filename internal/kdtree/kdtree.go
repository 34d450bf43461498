// Package kdtree implements a static, read-only k-d tree over 3D points,
// built once and shared across any number of concurrent query goroutines.
//
// The splitting rule is median-of-variance: at each internal node the axis
// of maximum coordinate variance among the node's points is chosen (ties
// broken by lowest axis index), and the node is split at the median value
// along that axis. Leaves hold up to bucketSize points.
package kdtree

import (
	"sort"

	"github.com/rpeters/masb/internal/geom"
)

// bucketSize bounds the number of points held directly in a leaf node.
const bucketSize = 12

// Neighbor is one result of a Nearest query: the index into the original
// PointCloud passed to Build, and the squared Euclidean distance to the
// query point.
type Neighbor struct {
	Index  int
	SqDist float32
}

type node struct {
	leaf bool

	// Leaf payload: absolute [start,end) range into Index.coords/orig.
	start, end int

	// Internal node payload.
	axis     int
	splitVal float32
	left     *node
	right    *node

	// Axis-aligned bounding box of every point under this node, used to
	// prune subtrees during search.
	bboxMin, bboxMax geom.Vec3
}

// Index is an immutable k-d tree. It is safe for concurrent use by any
// number of readers once Build has returned.
type Index struct {
	// points is the caller's original array; orig[pos] is the original
	// index of the point stored at tree position pos. When rearranged is
	// non-nil (rearrange=true at Build time) rearranged[pos] holds a
	// physical copy of that coordinate for cache locality during search;
	// otherwise coordAt falls back to points[orig[pos]]. Either way,
	// Nearest reports indices into the caller's original points slice.
	points     []geom.Vec3
	orig       []int
	rearranged []geom.Vec3
	root       *node
}

func (idx *Index) coordAt(pos int) geom.Vec3 {
	if idx.rearranged != nil {
		return idx.rearranged[pos]
	}
	return idx.points[idx.orig[pos]]
}

// Build constructs a k-d tree over points using the median-of-variance
// splitting rule described in the package doc. If rearrange is true the
// tree's internal storage holds a reordered copy of points for locality;
// regardless of rearrange, Nearest always reports indices into the
// original points slice.
//
// Build costs O(N log^2 N) due to the per-level sort used to find the
// median; for the point counts this core targets that dominates neither
// normal estimation nor shrinking ball.
func Build(points []geom.Vec3, rearrange bool) *Index {
	n := len(points)
	idx := &Index{}
	if n == 0 {
		return idx
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	b := &builder{points: points, order: order}
	idx.root = b.build(0, n)

	orig := make([]int, n)
	copy(orig, order)
	idx.points = points
	idx.orig = orig

	if rearrange {
		rearranged := make([]geom.Vec3, n)
		for pos, origIdx := range order {
			rearranged[pos] = points[origIdx]
		}
		idx.rearranged = rearranged
	}

	return idx
}

type builder struct {
	points []geom.Vec3
	order  []int
}

// build partitions b.order[lo:hi] in place and returns the subtree root.
func (b *builder) build(lo, hi int) *node {
	bboxMin, bboxMax := bbox(b.order[lo:hi], b.points)

	if hi-lo <= bucketSize {
		return &node{leaf: true, start: lo, end: hi, bboxMin: bboxMin, bboxMax: bboxMax}
	}

	axis := splitAxis(b.order[lo:hi], b.points)

	seg := b.order[lo:hi]
	sort.Slice(seg, func(i, j int) bool {
		return b.points[seg[i]].Axis(axis) < b.points[seg[j]].Axis(axis)
	})

	mid := lo + (hi-lo)/2
	splitVal := b.points[b.order[mid]].Axis(axis)

	left := b.build(lo, mid)
	right := b.build(mid, hi)

	return &node{
		axis:     axis,
		splitVal: splitVal,
		left:     left,
		right:    right,
		bboxMin:  bboxMin,
		bboxMax:  bboxMax,
	}
}

// splitAxis returns the coordinate axis of maximum variance among the
// points referenced by order, breaking ties by the lowest axis index.
func splitAxis(order []int, points []geom.Vec3) int {
	var mean geom.Vec3
	n := float32(len(order))
	for _, i := range order {
		mean = geom.Add(mean, points[i])
	}
	mean = geom.Scale(mean, 1/n)

	var varSum [3]float32
	for _, i := range order {
		d := geom.Sub(points[i], mean)
		varSum[0] += d.X * d.X
		varSum[1] += d.Y * d.Y
		varSum[2] += d.Z * d.Z
	}

	best := 0
	for a := 1; a < 3; a++ {
		if varSum[a] > varSum[best] {
			best = a
		}
	}
	return best
}

func bbox(order []int, points []geom.Vec3) (min, max geom.Vec3) {
	min = points[order[0]]
	max = points[order[0]]
	for _, i := range order[1:] {
		p := points[i]
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.Z < min.Z {
			min.Z = p.Z
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
		if p.Z > max.Z {
			max.Z = p.Z
		}
	}
	return min, max
}

// boxSqDist returns the squared distance from q to the nearest point of
// the axis-aligned box [min,max], or 0 if q is inside the box.
func boxSqDist(min, max, q geom.Vec3) float32 {
	var d float32
	for axis := 0; axis < 3; axis++ {
		v := q.Axis(axis)
		lo := min.Axis(axis)
		hi := max.Axis(axis)
		var delta float32
		if v < lo {
			delta = lo - v
		} else if v > hi {
			delta = v - hi
		}
		d += delta * delta
	}
	return d
}

// bounded is a fixed-capacity result set sorted ascending by (SqDist,
// Index), used to resolve the exact tie-breaking rule Nearest promises.
type bounded struct {
	k     int
	items []Neighbor
}

func less(x, y Neighbor) bool {
	if x.SqDist != y.SqDist {
		return x.SqDist < y.SqDist
	}
	return x.Index < y.Index
}

func (b *bounded) full() bool { return len(b.items) >= b.k }

func (b *bounded) worst() Neighbor {
	return b.items[len(b.items)-1]
}

func (b *bounded) add(n Neighbor) {
	if !b.full() {
		pos := sort.Search(len(b.items), func(i int) bool { return less(n, b.items[i]) })
		b.items = append(b.items, Neighbor{})
		copy(b.items[pos+1:], b.items[pos:])
		b.items[pos] = n
		return
	}
	if less(n, b.worst()) {
		pos := sort.Search(len(b.items)-1, func(i int) bool { return less(n, b.items[i]) })
		copy(b.items[pos+1:], b.items[pos:len(b.items)-1])
		b.items[pos] = n
	}
}

// Nearest returns the min(k, N) nearest neighbors of query. Ties are
// broken by ascending original index. When sorted is true (required by
// the shrinking-ball stage), results are ordered by nondecreasing squared
// distance; the result is already produced in that order regardless, so
// sorted only documents the caller's requirement, not a distinct code path.
func (idx *Index) Nearest(query geom.Vec3, k int, sorted bool) []Neighbor {
	_ = sorted
	if idx.root == nil || k <= 0 {
		return nil
	}
	if k > len(idx.orig) {
		k = len(idx.orig)
	}

	b := &bounded{k: k, items: make([]Neighbor, 0, k)}
	idx.search(idx.root, query, b)
	return b.items
}

// NearestBatch runs Nearest for every query point. It performs no
// concurrency of its own; callers that want the work spread across
// workers use internal/workerpool directly, as internal/normals does.
func (idx *Index) NearestBatch(queries []geom.Vec3, k int) [][]Neighbor {
	out := make([][]Neighbor, len(queries))
	for i, q := range queries {
		out[i] = idx.Nearest(q, k, true)
	}
	return out
}

// Len reports the number of points indexed.
func (idx *Index) Len() int { return len(idx.orig) }

// Depth reports the tree's maximum root-to-leaf depth, for diagnostics.
func (idx *Index) Depth() int {
	return depth(idx.root)
}

func depth(n *node) int {
	if n == nil {
		return 0
	}
	if n.leaf {
		return 1
	}
	l, r := depth(n.left), depth(n.right)
	if l > r {
		return l + 1
	}
	return r + 1
}

// LeafCount reports the number of leaf nodes, for diagnostics.
func (idx *Index) LeafCount() int {
	return leafCount(idx.root)
}

func leafCount(n *node) int {
	if n == nil {
		return 0
	}
	if n.leaf {
		return 1
	}
	return leafCount(n.left) + leafCount(n.right)
}

func (idx *Index) search(n *node, query geom.Vec3, b *bounded) {
	if n == nil {
		return
	}
	if b.full() && boxSqDist(n.bboxMin, n.bboxMax, query) > b.worst().SqDist {
		return
	}

	if n.leaf {
		for pos := n.start; pos < n.end; pos++ {
			b.add(Neighbor{Index: idx.orig[pos], SqDist: geom.SquaredDist(query, idx.coordAt(pos))})
		}
		return
	}

	diff := query.Axis(n.axis) - n.splitVal
	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	idx.search(near, query, b)
	idx.search(far, query, b)
}
