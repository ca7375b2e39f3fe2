package simplify

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-apcac/internal/catalog"
)

// wavyRing returns a closed ring around a circle with a small radial wobble,
// giving the simplifier plenty of near-collinear points to drop.
func wavyRing(cx, cy, radius float64, n int) orb.Ring {
	r := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		rad := radius * (1 + 0.0005*math.Sin(float64(i)*7))
		r = append(r, orb.Point{cx + rad*math.Cos(a), cy + rad*math.Sin(a)})
	}
	return append(r, r[0])
}

func sampleFeatures() []catalog.Feature {
	shell := wavyRing(-47, -15, 1, 400)
	hole := wavyRing(-47, -15, 0.3, 200)
	return []catalog.Feature{
		{ID: 1, ClassCode: "IICN", Geometry: orb.Polygon{shell, hole}, Properties: map[string]any{"cd_apcac": "IICN"}},
		{ID: 2, ClassCode: "IVCN", Geometry: orb.MultiPolygon{{wavyRing(-45, -15, 0.5, 300)}, {wavyRing(-44, -15, 0.2, 100)}}},
		{ID: 3, ClassCode: "", Geometry: orb.LineString{{0, 0}, {0.5, 0.0001}, {1, 0}}},
	}
}

func TestFeaturesPreservesCountAndAttributes(t *testing.T) {
	in := sampleFeatures()
	out := Features(in, 0.01)

	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].ID, out[i].ID)
		assert.Equal(t, in[i].ClassCode, out[i].ClassCode)
		assert.Equal(t, in[i].Properties, out[i].Properties)
		assert.LessOrEqual(t, VertexCount(out[i].Geometry), VertexCount(in[i].Geometry))
	}

	assert.Less(t, VertexCount(out[0].Geometry), VertexCount(in[0].Geometry))
}

func TestFeaturesDoesNotMutateInput(t *testing.T) {
	in := sampleFeatures()
	before := VertexCount(in[0].Geometry)
	clone := orb.Clone(in[0].Geometry)

	Features(in, 0.05)

	assert.Equal(t, before, VertexCount(in[0].Geometry))
	assert.Equal(t, clone, in[0].Geometry)
}

func TestZeroToleranceIsIdentity(t *testing.T) {
	in := sampleFeatures()
	out := Features(in, 0)

	for i := range in {
		assert.Equal(t, in[i].Geometry, out[i].Geometry)
	}
}

func TestEmptyInput(t *testing.T) {
	assert.Nil(t, Features(nil, 0.1))
	assert.Empty(t, Features([]catalog.Feature{}, 0.1))
	assert.Nil(t, Geometry(nil, 0.1))
}

func TestSimplifiedRingsStayValid(t *testing.T) {
	out := Features(sampleFeatures(), 0.05)

	poly := out[0].Geometry.(orb.Polygon)
	for _, r := range poly {
		assert.GreaterOrEqual(t, len(r), 4)
		assert.True(t, r.Closed())
		assert.False(t, selfIntersects(r))
	}
}

func TestHugeToleranceKeepsRing(t *testing.T) {
	tri := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0.5, 1.0001}, {0, 1}, {0, 0}}
	got := Geometry(orb.Polygon{tri}, 100).(orb.Polygon)

	require.Len(t, got, 1)
	assert.GreaterOrEqual(t, len(got[0]), 4)
	assert.True(t, got[0].Closed())
}

func TestSelfIntersects(t *testing.T) {
	square := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	bowtie := orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}
	touching := orb.Ring{{0, 0}, {2, 0}, {1, 1}, {2, 2}, {0, 2}, {1, 1}, {0, 0}}

	assert.False(t, selfIntersects(square))
	assert.True(t, selfIntersects(bowtie))
	assert.True(t, selfIntersects(touching))
	assert.False(t, selfIntersects(wavyRing(0, 0, 1, 64)))
}

func TestHoleStaysInsideShell(t *testing.T) {
	shell := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {5, 12}, {0, 10}, {0, 0}}
	hole := orb.Ring{{4.5, 10.5}, {5.5, 10.5}, {5, 11}, {4.5, 10.5}}

	// At this tolerance the shell alone drops its peak, leaving the hole outside.
	require.False(t, planar.RingContains(ring(shell, 3), hole[0]))

	got := Geometry(orb.Polygon{shell, hole}, 3).(orb.Polygon)

	require.Len(t, got, 2)
	assert.True(t, planar.RingContains(got[0], orb.Point{5, 12}))
	for _, p := range got[1] {
		assert.True(t, planar.RingContains(got[0], p), "hole vertex %v outside shell", p)
	}
	assert.False(t, edgesIntersect(got...))
}

func TestHoleCrossingShellIsRejected(t *testing.T) {
	shell := orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}
	crossing := orb.Ring{{3, 1}, {5, 1}, {5, 2}, {3, 1}}
	outside := orb.Ring{{6, 6}, {7, 6}, {7, 7}, {6, 6}}

	_, ok := simplifyPolygon(orb.Polygon{shell, crossing}, 0.1)
	assert.False(t, ok)
	_, ok = simplifyPolygon(orb.Polygon{shell, outside}, 0.1)
	assert.False(t, ok)
	_, ok = simplifyPolygon(orb.Polygon{shell, {{1, 1}, {2, 1}, {2, 2}, {1, 1}}}, 0.1)
	assert.True(t, ok)
}

func TestMultiPolygonPartsStayApart(t *testing.T) {
	notched := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {6, 10}, {5, 6}, {4, 10}, {0, 10}, {0, 0}}}
	island := orb.Polygon{{{4.8, 8}, {5.2, 8}, {5, 9.5}, {4.8, 8}}}
	mp := orb.MultiPolygon{notched, island}
	require.True(t, disjoint(mp))

	// Simplified on its own the notch closes over the island.
	require.True(t, planar.PolygonContains(polygon(notched, 5), island[0][0]))

	got := Geometry(mp, 5).(orb.MultiPolygon)

	require.Len(t, got, 2)
	assert.True(t, disjoint(got))
	assert.False(t, planar.PolygonContains(got[0], island[0][0]))
	assert.Equal(t, island, got[1])
}

func TestVertexCount(t *testing.T) {
	assert.Equal(t, 0, VertexCount(nil))
	assert.Equal(t, 1, VertexCount(orb.Point{1, 2}))
	assert.Equal(t, 10, VertexCount(orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}, {{0, 0}}},
	}))
	assert.Equal(t, 3, VertexCount(orb.Collection{orb.Point{}, orb.LineString{{0, 0}, {1, 1}}}))
}
