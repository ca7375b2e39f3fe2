// Package simplify reduces polygon vertex counts for rendering without
// introducing self-intersections.
package simplify

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-apcac/internal/catalog"
)

// DefaultTolerance is the Douglas-Peucker distance threshold, in units of
// the layer's coordinate reference system.
const DefaultTolerance = 0.001

// maxAttempts bounds how often a ring or polygon is retried with a halved
// tolerance before it is kept unchanged.
const maxAttempts = 4

// Features returns a copy of features with simplified geometries. Feature
// count, IDs, codes and properties are preserved; properties maps are shared
// with the input. A tolerance <= 0 only clones the geometries.
func Features(features []catalog.Feature, tolerance float64) []catalog.Feature {
	if len(features) == 0 {
		return features
	}
	out := make([]catalog.Feature, len(features))
	for i, f := range features {
		f.Geometry = Geometry(f.Geometry, tolerance)
		out[i] = f
	}
	return out
}

// Geometry simplifies a clone of g. Polygons whose rings would collapse,
// cross themselves or each other, or whose holes would fall outside the
// shell are retried with a smaller tolerance and finally kept as they were.
// Polygons of a MultiPolygon that were apart stay apart. Other geometry
// types are simplified as line work.
func Geometry(g orb.Geometry, tolerance float64) orb.Geometry {
	if g == nil {
		return nil
	}
	g = orb.Clone(g)
	if tolerance <= 0 {
		return g
	}

	switch geom := g.(type) {
	case orb.Polygon:
		return polygon(geom, tolerance)
	case orb.MultiPolygon:
		return multiPolygon(geom, tolerance)
	case orb.Ring:
		return ring(geom, tolerance)
	case orb.Point, orb.MultiPoint:
		return geom
	default:
		return simplify.DouglasPeucker(tolerance).Simplify(geom)
	}
}

func multiPolygon(mp orb.MultiPolygon, tolerance float64) orb.MultiPolygon {
	apart := disjoint(mp)
	for attempt, t := 0, tolerance; attempt < maxAttempts; attempt, t = attempt+1, t/2 {
		out := make(orb.MultiPolygon, len(mp))
		for i := range mp {
			out[i] = polygon(mp[i], t)
		}
		if !apart || disjoint(out) {
			return out
		}
	}
	return mp
}

func polygon(p orb.Polygon, tolerance float64) orb.Polygon {
	for attempt, t := 0, tolerance; attempt < maxAttempts; attempt, t = attempt+1, t/2 {
		if s, ok := simplifyPolygon(p, t); ok {
			return s
		}
	}
	return p
}

// simplifyPolygon simplifies every ring of p at tolerance t and reports
// whether the result is still a valid polygon.
func simplifyPolygon(p orb.Polygon, t float64) (orb.Polygon, bool) {
	if len(p) == 0 {
		return p, true
	}
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		out[i] = simplifyRing(r, t)
		if len(out[i]) < 4 || !out[i].Closed() {
			return nil, false
		}
	}
	if edgesIntersect(out...) {
		return nil, false
	}
	for _, hole := range out[1:] {
		if !planar.RingContains(out[0], hole[0]) {
			return nil, false
		}
	}
	return out, true
}

func ring(r orb.Ring, tolerance float64) orb.Ring {
	for attempt, t := 0, tolerance; attempt < maxAttempts; attempt, t = attempt+1, t/2 {
		s := simplifyRing(r, t)
		if len(s) >= 4 && s.Closed() && !selfIntersects(s) {
			return s
		}
	}
	return r
}

func simplifyRing(r orb.Ring, t float64) orb.Ring {
	if len(r) <= 4 {
		return r
	}
	return simplify.DouglasPeucker(t).Ring(r.Clone())
}

// disjoint reports whether no two polygons of mp have touching shells and
// none starts inside another.
func disjoint(mp orb.MultiPolygon) bool {
	if len(mp) < 2 {
		return true
	}
	shells := make([]orb.Ring, 0, len(mp))
	for _, p := range mp {
		if len(p) > 0 {
			shells = append(shells, p[0])
		}
	}
	if edgesIntersect(shells...) {
		return false
	}
	for i, p := range mp {
		if len(p) == 0 || len(p[0]) == 0 {
			continue
		}
		for j, q := range mp {
			if i == j || len(q) == 0 || len(q[0]) == 0 {
				continue
			}
			if p[0].Bound().Intersects(q[0].Bound()) && planar.PolygonContains(p, q[0][0]) {
				return false
			}
		}
	}
	return true
}

// VertexCount returns the number of points in g.
func VertexCount(g orb.Geometry) int {
	switch geom := g.(type) {
	case nil:
		return 0
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(geom)
	case orb.LineString:
		return len(geom)
	case orb.Ring:
		return len(geom)
	case orb.MultiLineString:
		n := 0
		for _, ls := range geom {
			n += len(ls)
		}
		return n
	case orb.Polygon:
		n := 0
		for _, r := range geom {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range geom {
			n += VertexCount(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range geom {
			n += VertexCount(c)
		}
		return n
	}
	return 0
}

type segment struct {
	a, b       orb.Point
	minX, maxX float64
	ring       int
	index, n   int
}

// selfIntersects reports whether two non-adjacent edges of the closed ring r
// touch or cross.
func selfIntersects(r orb.Ring) bool {
	return edgesIntersect(r)
}

// edgesIntersect reports whether any two edges of the closed rings touch or
// cross, ignoring consecutive edges of the same ring. Edges are swept by x
// so typical rings avoid the quadratic all-pairs check.
func edgesIntersect(rings ...orb.Ring) bool {
	var segs []segment
	for ri, r := range rings {
		n := len(r) - 1
		if n < 3 {
			continue
		}
		for i := 0; i < n; i++ {
			a, b := r[i], r[i+1]
			segs = append(segs, segment{
				a: a, b: b,
				minX: min(a[0], b[0]), maxX: max(a[0], b[0]),
				ring: ri, index: i, n: n,
			})
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].minX < segs[j].minX })

	var active []segment
	for _, s := range segs {
		kept := active[:0]
		for _, o := range active {
			if o.maxX >= s.minX {
				kept = append(kept, o)
			}
		}
		active = kept

		for _, o := range active {
			if s.ring == o.ring && adjacent(s.index, o.index, s.n) {
				continue
			}
			if segmentsIntersect(s.a, s.b, o.a, o.b) {
				return true
			}
		}
		active = append(active, s)
	}
	return false
}

func adjacent(i, j, n int) bool {
	d := i - j
	if d < 0 {
		d = -d
	}
	return d <= 1 || d == n-1
}

func orientation(p, q, r orb.Point) int {
	v := (q[1]-p[1])*(r[0]-q[0]) - (q[0]-p[0])*(r[1]-q[1])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func onSegment(p, q, r orb.Point) bool {
	return q[0] <= max(p[0], r[0]) && q[0] >= min(p[0], r[0]) &&
		q[1] <= max(p[1], r[1]) && q[1] >= min(p[1], r[1])
}

func segmentsIntersect(p1, q1, p2, q2 orb.Point) bool {
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(p1, p2, q1)) ||
		(o2 == 0 && onSegment(p1, q2, q1)) ||
		(o3 == 0 && onSegment(p2, p1, q2)) ||
		(o4 == 0 && onSegment(p2, q1, q2))
}
