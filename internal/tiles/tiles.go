// Package tiles cuts an APCAC layer into styled Mapbox vector tiles and
// packs them into a PMTiles archive, for serving large layers from static
// storage instead of as one GeoJSON document.
package tiles

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-apcac/internal/catalog"
	"github.com/joeblew999/plat-apcac/internal/pmtiles"
	"github.com/joeblew999/plat-apcac/internal/style"
)

// MaxZoom is the deepest zoom level accepted.
const MaxZoom = 14

// Options selects the zoom range of the archive.
type Options struct {
	MinZoom int
	MaxZoom int
}

// DefaultOptions cover the state-wide to municipality scales.
var DefaultOptions = Options{MinZoom: 4, MaxZoom: 10}

// Summary describes a written archive.
type Summary struct {
	Layer    string    `json:"layer"`
	Features int       `json:"features"`
	Tiles    int       `json:"tiles"`
	Bound    orb.Bound `json:"-"`
	MinZoom  int       `json:"minZoom"`
	MaxZoom  int       `json:"maxZoom"`
}

// ErrNoFeatures is returned for a layer without geometry.
var ErrNoFeatures = errors.New("layer has no features to tile")

func (o Options) validate() error {
	if o.MinZoom < 0 || o.MaxZoom > MaxZoom || o.MinZoom > o.MaxZoom {
		return fmt.Errorf("zoom range %d-%d: want 0 <= min <= max <= %d", o.MinZoom, o.MaxZoom, MaxZoom)
	}
	return nil
}

// styledFeatures converts features to GeoJSON carrying the class code and
// its fill color, the two properties a vector style needs.
func styledFeatures(features []catalog.Feature, styles *style.StyleMap) (*geojson.FeatureCollection, orb.Bound) {
	fc := geojson.NewFeatureCollection()
	var bound orb.Bound
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		gf.Properties[style.CodeColumn] = f.ClassCode
		gf.Properties["fill"] = styles.Color(f.ClassCode)
		if len(fc.Features) == 0 {
			bound = f.Geometry.Bound()
		} else {
			bound = bound.Union(f.Geometry.Bound())
		}
		fc.Append(gf)
	}
	return fc, bound
}

// Build encodes the features as gzipped MVT tiles, one layer named layer
// per tile.
func Build(layer string, features []catalog.Feature, styles *style.StyleMap, opts Options) ([]pmtiles.Tile, Summary, error) {
	summary := Summary{Layer: layer, MinZoom: opts.MinZoom, MaxZoom: opts.MaxZoom}
	if err := opts.validate(); err != nil {
		return nil, summary, err
	}
	fc, bound := styledFeatures(features, styles)
	if len(fc.Features) == 0 {
		return nil, summary, ErrNoFeatures
	}
	summary.Features = len(fc.Features)
	summary.Bound = bound

	var out []pmtiles.Tile
	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		zoom := maptile.Zoom(z)
		byTile := make(map[maptile.Tile][]*geojson.Feature)
		for _, f := range fc.Features {
			for _, t := range tilesInBounds(f.Geometry.Bound(), zoom) {
				byTile[t] = append(byTile[t], f)
			}
		}
		for t, fs := range byTile {
			data, err := encodeTile(t, fs, layer)
			if err != nil {
				return nil, summary, fmt.Errorf("encoding tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
			}
			if data != nil {
				out = append(out, pmtiles.Tile{Z: uint8(t.Z), X: t.X, Y: t.Y, Data: data})
			}
		}
	}
	summary.Tiles = len(out)
	return out, summary, nil
}

// Write builds the tiles and writes them to w as a PMTiles archive.
func Write(w io.Writer, layer string, features []catalog.Feature, styles *style.StyleMap, opts Options) (Summary, error) {
	tiles, summary, err := Build(layer, features, styles, opts)
	if err != nil {
		return summary, err
	}
	err = pmtiles.Write(w, tiles, pmtiles.Archive{
		MinZoom:     uint8(opts.MinZoom),
		MaxZoom:     uint8(opts.MaxZoom),
		Bound:       summary.Bound,
		Compression: pmtiles.Gzip,
		Metadata: map[string]any{
			"name":    layer,
			"format":  "pbf",
			"minzoom": opts.MinZoom,
			"maxzoom": opts.MaxZoom,
			"vector_layers": []map[string]any{{
				"id":     layer,
				"fields": map[string]string{style.CodeColumn: "String", "fill": "String"},
			}},
		},
	})
	return summary, err
}

// encodeTile clips, simplifies and projects the features of one tile. It
// returns nil when nothing of them is left inside the tile.
func encodeTile(t maptile.Tile, features []*geojson.Feature, layer string) ([]byte, error) {
	bound := t.Bound()
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if !intersects(f.Geometry, bound) {
			continue
		}
		// Clip and ProjectToTile work in place.
		clone := geojson.NewFeature(orb.Clone(f.Geometry))
		clone.ID = f.ID
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		fc.Append(clone)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	l := mvt.NewLayer(layer, fc)
	l.Simplify(simplify.DouglasPeucker(pixelSize(t.Z)))
	l.Clip(bound)
	l.ProjectToTile(t)
	l.RemoveEmpty(0.5, 0.5)
	if len(l.Features) == 0 {
		return nil, nil
	}
	return mvt.MarshalGzipped(mvt.Layers{l})
}

// pixelSize is the width in degrees of one pixel of a 256 px tile at zoom z.
func pixelSize(z maptile.Zoom) float64 {
	return 360 / (256 * math.Exp2(float64(z)))
}

// intersects reports whether a polygonal geometry overlaps the tile bound.
// Other geometry types fall back to the bounding box test.
func intersects(g orb.Geometry, tile orb.Bound) bool {
	if !g.Bound().Intersects(tile) {
		return false
	}
	switch geom := g.(type) {
	case orb.Polygon:
		for _, ring := range geom {
			for i, p := range ring {
				if tile.Contains(p) {
					return true
				}
				if i > 0 && segmentIntersects(ring[i-1], p, tile) {
					return true
				}
			}
		}
		// No boundary reaches the tile, so it is either inside or outside.
		return planar.PolygonContains(geom, tile.Center())
	case orb.MultiPolygon:
		for _, p := range geom {
			if intersects(p, tile) {
				return true
			}
		}
		return false
	}
	return true
}

// segmentIntersects reports whether the segment ab passes through b, by
// Liang-Barsky clipping.
func segmentIntersects(a, c orb.Point, b orb.Bound) bool {
	t0, t1 := 0.0, 1.0
	dx, dy := c[0]-a[0], c[1]-a[1]
	for _, e := range [4][2]float64{
		{-dx, a[0] - b.Min[0]},
		{dx, b.Max[0] - a[0]},
		{-dy, a[1] - b.Min[1]},
		{dy, b.Max[1] - a[1]},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return false
			}
			continue
		}
		r := q / p
		if p < 0 {
			t0 = max(t0, r)
		} else {
			t1 = min(t1, r)
		}
		if t0 > t1 {
			return false
		}
	}
	return true
}

// tilesInBounds returns the tiles at zoom covering b.
func tilesInBounds(b orb.Bound, zoom maptile.Zoom) []maptile.Tile {
	lo := maptile.At(b.Min, zoom)
	hi := maptile.At(b.Max, zoom)
	minX, maxX := min(lo.X, hi.X), max(lo.X, hi.X)
	minY, maxY := min(lo.Y, hi.Y), max(lo.Y, hi.Y)

	tiles := make([]maptile.Tile, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, zoom))
		}
	}
	return tiles
}
