// Package catalog lists and loads the classified APCAC layers stored in a
// GeoPackage.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb"

	_ "modernc.org/sqlite"
)

const (
	// LayerPrefix marks the selectable classified tables.
	LayerPrefix = "apcac_"
	// AuxiliarySuffix marks the low-resolution helper tables that are not
	// offered for selection.
	AuxiliarySuffix = "_bho5k"
)

// DefaultCodeColumns is the priority-ordered list of attribute names that may
// hold the class code. The first entry is the canonical column of the
// current dataset version; the rest cover older exports.
var DefaultCodeColumns = []string{"cd_apcac", "apcac", "codigo", "class"}

// DefaultLayerPreference lists the resolutions preselected for the user, in
// order.
var DefaultLayerPreference = []string{"apcac_nunivotto3", "apcac_nunivotto4", "apcac_nunivotto5"}

// Feature is one polygon record of a layer.
type Feature struct {
	ID         int64
	ClassCode  string
	Geometry   orb.Geometry
	Properties map[string]any
}

// ReadError reports a failure to read the layer catalog.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading layer catalog %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// LoadError reports a failure to load one layer.
type LoadError struct {
	Path  string
	Layer string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading layer %s from %s: %v", e.Layer, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// open opens the GeoPackage read-only. The file must exist: the SQLite
// driver would otherwise create an empty database.
func open(path string) (*sqlx.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return sqlx.Open("sqlite", "file:"+path+"?_pragma=query_only(1)")
}

// tableNames returns every table of the GeoPackage.
func tableNames(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var names []string
	err := db.SelectContext(ctx, &names, "SELECT name FROM sqlite_master WHERE type = 'table'")
	return names, err
}

// ListLayers returns the selectable classified layers of the GeoPackage at
// path, sorted by name.
func ListLayers(ctx context.Context, path string) ([]string, error) {
	db, err := open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer db.Close()

	names, err := tableNames(ctx, db)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return FilterLayers(names), nil
}

// FilterLayers keeps names starting with LayerPrefix and not ending with
// AuxiliarySuffix, sorted.
func FilterLayers(names []string) []string {
	layers := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, LayerPrefix) && !strings.HasSuffix(n, AuxiliarySuffix) {
			layers = append(layers, n)
		}
	}
	sort.Strings(layers)
	return layers
}

// DefaultLayer picks the layer to preselect: the first of prefs that is
// available, otherwise the first listed layer. It returns "" for no layers.
func DefaultLayer(layers, prefs []string) string {
	for _, p := range prefs {
		for _, l := range layers {
			if l == p {
				return l
			}
		}
	}
	if len(layers) > 0 {
		return layers[0]
	}
	return ""
}

// ResolveCodeColumn returns the first candidate present in columns.
func ResolveCodeColumn(columns, candidates []string) (string, bool) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, c := range candidates {
		if present[c] {
			return c, true
		}
	}
	return "", false
}
