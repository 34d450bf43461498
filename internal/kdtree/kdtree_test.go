package kdtree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rpeters/masb/internal/geom"
)

func bruteForce(points []geom.Vec3, query geom.Vec3, k int) []Neighbor {
	out := make([]Neighbor, len(points))
	for i, p := range points {
		out[i] = Neighbor{Index: i, SqDist: geom.SquaredDist(query, p)}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SqDist != out[j].SqDist {
			return out[i].SqDist < out[j].SqDist
		}
		return out[i].Index < out[j].Index
	})
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}

func randomCloud(n int, seed int64) []geom.Vec3 {
	r := rand.New(rand.NewSource(seed))
	points := make([]geom.Vec3, n)
	for i := range points {
		points[i] = geom.Vec3{
			X: float32(r.NormFloat64() * 10),
			Y: float32(r.NormFloat64() * 10),
			Z: float32(r.NormFloat64() * 10),
		}
	}
	return points
}

func TestEmptyIndex(t *testing.T) {
	idx := Build(nil, false)
	require.Equal(t, 0, idx.Len())
	require.Nil(t, idx.Nearest(geom.Vec3{}, 5, true))
}

func TestSinglePointSelfMatch(t *testing.T) {
	points := []geom.Vec3{{1, 2, 3}}
	idx := Build(points, false)

	res := idx.Nearest(points[0], 1, true)
	require.Len(t, res, 1)
	require.Equal(t, 0, res[0].Index)
	require.Equal(t, float32(0), res[0].SqDist)
}

func TestNearestMatchesBruteForce(t *testing.T) {
	for _, rearrange := range []bool{false, true} {
		points := randomCloud(500, 42)
		idx := Build(points, rearrange)

		for q := 0; q < 20; q++ {
			query := points[q*17%len(points)]
			got := idx.Nearest(query, 8, true)
			want := bruteForce(points, query, 8)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("query %d: Nearest mismatch (-want +got):\n%s", q, diff)
			}
		}
	}
}

func TestNearestSelfIsClosest(t *testing.T) {
	points := randomCloud(200, 7)
	idx := Build(points, true)

	for i, p := range points {
		res := idx.Nearest(p, 1, true)
		require.Len(t, res, 1)
		require.Equal(t, i, res[0].Index)
		require.Equal(t, float32(0), res[0].SqDist)
	}
}

func TestNearestKGreaterThanN(t *testing.T) {
	points := randomCloud(5, 3)
	idx := Build(points, false)

	res := idx.Nearest(points[0], 100, true)
	require.Len(t, res, 5)
}

func TestNearestBatch(t *testing.T) {
	points := randomCloud(50, 9)
	idx := Build(points, false)

	batch := idx.NearestBatch(points, 3)
	require.Len(t, batch, len(points))
	for i, res := range batch {
		require.Equal(t, idx.Nearest(points[i], 3, true), res)
	}
}

func TestDepthAndLeafCountNonTrivial(t *testing.T) {
	points := randomCloud(1000, 11)
	idx := Build(points, false)

	require.Greater(t, idx.Depth(), 1)
	require.Greater(t, idx.LeafCount(), 1)
}
