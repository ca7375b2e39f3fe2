// Package render turns a layer's features and the class styles into the map
// payload the dashboard draws with Leaflet: base layers, one styled GeoJSON
// overlay, tooltip and popup fields, and the initial viewport.
package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-apcac/internal/catalog"
	"github.com/joeblew999/plat-apcac/internal/style"
)

// Viewport used when there is nothing to fit: the center of the Cerrado.
const (
	DefaultLat  = -15.7801
	DefaultLon  = -47.9292
	DefaultZoom = 7
)

// Overlay stroke and opacity. The stroke is kept thin because layers hold
// many small polygons.
const (
	StrokeColor   = "#333333"
	StrokeWeight  = 0.3
	FillOpacity   = 0.6
	StrokeOpacity = 0.8
)

const (
	// OverlayName is the layer-control name of the classified overlay.
	OverlayName = "APCAC"
	// CodeAlias labels the class code in tooltips and popups.
	CodeAlias = "APCAC"
	// StyleProperty holds each feature's PathStyle in the overlay.
	StyleProperty = "style"
	// PopupProperty holds each feature's popup text in the overlay.
	PopupProperty = "popup"
)

// Field is an attribute shown in a tooltip or popup.
type Field struct {
	Name  string `json:"name" yaml:"name" doc:"Attribute name"`
	Alias string `json:"alias" yaml:"alias" doc:"Human readable label"`
}

// DefaultPopupFields are the auxiliary attributes shown after the class code.
var DefaultPopupFields = []Field{
	{Name: "area_km2", Alias: "Área (km²)"},
	{Name: "elev_mean", Alias: "Elevação média (m)"},
	{Name: "slope_mean", Alias: "Declividade média (%)"},
}

// TileLayer is a raster base layer.
type TileLayer struct {
	Name        string `json:"name" doc:"Layer control name"`
	URL         string `json:"url" doc:"XYZ tile URL template"`
	Attribution string `json:"attribution" doc:"Attribution text"`
}

// BaseLayers are the mutually exclusive background choices, first is active.
var BaseLayers = []TileLayer{
	{
		Name:        "National Geographic",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/NatGeo_World_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Esri National Geographic",
	},
	{
		Name:        "Terrain",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Terrain_Base/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Esri Terrain",
	},
}

// PathStyle is a Leaflet path style.
type PathStyle struct {
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
	Opacity     float64 `json:"opacity"`
}

// Control is one entry of the layer-visibility control.
type Control struct {
	Name    string `json:"name"`
	Overlay bool   `json:"overlay"`
}

// Overlay is the classified layer.
type Overlay struct {
	Name     string                     `json:"name"`
	Features *geojson.FeatureCollection `json:"features"`
	Tooltip  []Field                    `json:"tooltip"`
	Popup    []Field                    `json:"popup"`
}

// RenderedMap is everything the browser needs to draw one layer. Coordinates
// in Center and FitBounds are [lat, lon] as Leaflet expects.
type RenderedMap struct {
	Layer      string         `json:"layer"`
	Center     [2]float64     `json:"center"`
	Zoom       int            `json:"zoom,omitempty"`
	FitBounds  *[2][2]float64 `json:"fitBounds,omitempty"`
	BaseLayers []TileLayer    `json:"baseLayers"`
	Overlay    Overlay        `json:"overlay"`
	Controls   []Control      `json:"controls"`
}

// Options tunes Render.
type Options struct {
	// CodeProperty is the overlay property carrying the class code.
	// Defaults to style.CodeColumn.
	CodeProperty string
	// PopupFields follow the class code in popups. Defaults to
	// DefaultPopupFields.
	PopupFields []Field
}

func (o Options) withDefaults() Options {
	if o.CodeProperty == "" {
		o.CodeProperty = style.CodeColumn
	}
	if o.PopupFields == nil {
		o.PopupFields = DefaultPopupFields
	}
	return o
}

// StyleFor returns the path style of a class. Unknown or empty codes are
// drawn gray.
func StyleFor(code string, styles *style.StyleMap) PathStyle {
	return PathStyle{
		FillColor:   styles.Color(code),
		Color:       StrokeColor,
		Weight:      StrokeWeight,
		FillOpacity: FillOpacity,
		Opacity:     StrokeOpacity,
	}
}

// Render builds the map for features of layer. The input is not modified.
func Render(layer string, features []catalog.Feature, styles *style.StyleMap, opts Options) *RenderedMap {
	opts = opts.withDefaults()

	m := &RenderedMap{
		Layer:      layer,
		BaseLayers: BaseLayers,
		Overlay: Overlay{
			Name:     OverlayName,
			Features: geojson.NewFeatureCollection(),
			Tooltip:  []Field{{Name: opts.CodeProperty, Alias: CodeAlias}},
			Popup:    append([]Field{{Name: opts.CodeProperty, Alias: CodeAlias}}, opts.PopupFields...),
		},
	}
	for _, b := range BaseLayers {
		m.Controls = append(m.Controls, Control{Name: b.Name})
	}
	m.Controls = append(m.Controls, Control{Name: OverlayName, Overlay: true})

	var bound orb.Bound
	var bounded bool
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		if bounded {
			bound = bound.Union(f.Geometry.Bound())
		} else {
			bound, bounded = f.Geometry.Bound(), true
		}

		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		gf.Properties[opts.CodeProperty] = f.ClassCode
		for _, field := range opts.PopupFields {
			if v, ok := f.Properties[field.Name]; ok {
				gf.Properties[field.Name] = v
			}
		}
		gf.Properties[StyleProperty] = StyleFor(f.ClassCode, styles)
		gf.Properties[PopupProperty] = PopupContent(f, opts.PopupFields)
		m.Overlay.Features.Append(gf)
	}

	if !bounded {
		m.Center = [2]float64{DefaultLat, DefaultLon}
		m.Zoom = DefaultZoom
		return m
	}
	c := bound.Center()
	m.Center = [2]float64{c.Lat(), c.Lon()}
	m.FitBounds = &[2][2]float64{
		{bound.Min.Lat(), bound.Min.Lon()},
		{bound.Max.Lat(), bound.Max.Lon()},
	}
	return m
}
