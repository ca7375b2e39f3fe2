package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
)

const defaultGeometryColumn = "geom"

// LoadLayer materializes every feature of layer name. The class code is read
// from the first of codeColumns present in the table (DefaultCodeColumns when
// none are given). Features with an empty geometry are skipped.
func LoadLayer(ctx context.Context, path, name string, codeColumns ...string) ([]Feature, error) {
	if len(codeColumns) == 0 {
		codeColumns = DefaultCodeColumns
	}

	db, err := open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Layer: name, Err: err}
	}
	defer db.Close()

	tables, err := tableNames(ctx, db)
	if err != nil {
		return nil, &LoadError{Path: path, Layer: name, Err: err}
	}
	if !slices.Contains(tables, name) {
		return nil, &LoadError{Path: path, Layer: name, Err: errors.New("no such layer")}
	}

	geomCol := defaultGeometryColumn
	err = db.GetContext(ctx, &geomCol,
		"SELECT column_name FROM gpkg_geometry_columns WHERE table_name = ?", name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) && !strings.Contains(err.Error(), "no such table") {
		return nil, &LoadError{Path: path, Layer: name, Err: fmt.Errorf("reading geometry column: %w", err)}
	}

	rows, err := db.QueryxContext(ctx, "SELECT * FROM "+quoteIdent(name))
	if err != nil {
		return nil, &LoadError{Path: path, Layer: name, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &LoadError{Path: path, Layer: name, Err: err}
	}
	codeCol, hasCode := ResolveCodeColumn(columns, codeColumns)

	var features []Feature
	for n := int64(0); rows.Next(); n++ {
		row := make(map[string]any, len(columns))
		if err := rows.MapScan(row); err != nil {
			return nil, &LoadError{Path: path, Layer: name, Err: err}
		}

		blob, _ := row[geomCol].([]byte)
		geom, err := decodeGeometry(blob)
		if err != nil {
			return nil, &LoadError{Path: path, Layer: name, Err: fmt.Errorf("feature %d: %w", n, err)}
		}
		if geom == nil {
			continue
		}
		delete(row, geomCol)

		f := Feature{ID: n, Geometry: geom, Properties: make(map[string]any, len(row))}
		for k, v := range row {
			f.Properties[k] = normalize(v)
		}
		if id, ok := f.Properties["fid"].(int64); ok {
			f.ID = id
		}
		if hasCode {
			f.ClassCode = stringValue(f.Properties[codeCol])
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Path: path, Layer: name, Err: err}
	}
	return features, nil
}

// normalize turns driver values into JSON-friendly ones.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
