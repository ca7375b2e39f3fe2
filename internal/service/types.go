// Package service contains the dashboard pipeline: it ties the style, catalog,
// simplification, rendering and statistics packages together behind memoized,
// soft-failing operations.
package service

import (
	"errors"

	"github.com/joeblew999/plat-apcac/internal/charts"
	"github.com/joeblew999/plat-apcac/internal/render"
	"github.com/joeblew999/plat-apcac/internal/stats"
	"github.com/joeblew999/plat-apcac/internal/style"
)

// ErrUnknownLayer is returned for a layer name that is not in the catalog.
var ErrUnknownLayer = errors.New("unknown layer")

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message about degraded data. Operations return one
// instead of failing when an input file cannot be used.
type Notice struct {
	Level   Level  `json:"level" enum:"info,warning,error" doc:"Severity"`
	Message string `json:"message" doc:"Message shown to the user"`
	Detail  string `json:"detail,omitempty" doc:"Underlying error"`
}

// LayersView lists the selectable layers.
type LayersView struct {
	Layers  []string `json:"layers" doc:"Selectable layer names, sorted" example:"[\"apcac_nunivotto3\"]"`
	Default string   `json:"default" doc:"Preselected layer, empty when there is none" example:"apcac_nunivotto3"`
	Notice  *Notice  `json:"notice,omitempty" doc:"Set when the catalog could not be read or is empty"`
}

// StyleView is the parsed style map in descriptor order.
type StyleView struct {
	Classes     []style.ClassStyle `json:"classes" doc:"Class styles in descriptor order"`
	Fingerprint string             `json:"fingerprint" doc:"Content hash of the style map"`
	Notice      *Notice            `json:"notice,omitempty" doc:"Set when the descriptor could not be read"`
}

// LegendView is the grouped legend.
type LegendView struct {
	style.Legend
	Notice *Notice `json:"notice,omitempty" doc:"Set when the descriptor could not be read"`
}

// ChartsView holds the statistics charts.
type ChartsView struct {
	charts.Result
	Notice *Notice `json:"notice,omitempty" doc:"Set when the statistics could not be read"`
}

// MapView is the rendered map of one layer.
type MapView struct {
	Layer     string              `json:"layer" doc:"Rendered layer"`
	Tolerance float64             `json:"tolerance" doc:"Simplification tolerance used"`
	Map       *render.RenderedMap `json:"map,omitempty" doc:"Map payload, absent when no layer exists"`
	Notice    *Notice             `json:"notice,omitempty" doc:"Set when the map is degraded"`
}

// SummaryView describes a whole layer.
type SummaryView struct {
	Layer    string  `json:"layer" doc:"Layer name"`
	Polygons int     `json:"polygons" doc:"Number of features"`
	Classes  int     `json:"classes" doc:"Number of distinct non-empty class codes"`
	AreaKm2  float64 `json:"areaKm2" doc:"Total geodesic area in km²"`
	Notice   *Notice `json:"notice,omitempty" doc:"Set when the layer could not be loaded"`
}

// Attribute is a displayable feature attribute.
type Attribute struct {
	Name  string `json:"name" doc:"Attribute name"`
	Value string `json:"value" doc:"Formatted value"`
}

// SelectionView echoes the feature clicked on the map.
type SelectionView struct {
	Layer      string            `json:"layer" doc:"Layer name"`
	Code       string            `json:"code,omitempty" doc:"Selected class code"`
	Style      *style.ClassStyle `json:"style,omitempty" doc:"Style of the class, absent when unknown"`
	Attributes []Attribute       `json:"attributes" doc:"Attributes of the first feature with this code"`
	Notice     *Notice           `json:"notice,omitempty" doc:"Set when the popup could not be interpreted"`
}

// StatisticsView holds the raw per-class statistics rows.
type StatisticsView struct {
	Rows   []stats.StatRow `json:"rows" doc:"One row per APCAC class, in file order"`
	Notice *Notice         `json:"notice,omitempty" doc:"Set when the statistics could not be read"`
}
