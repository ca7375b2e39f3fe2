// Package fixtures writes small APCAC datasets (GeoPackage, QML, CSV) for
// tests.
package fixtures

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	_ "modernc.org/sqlite"
)

// Feature is a fixture polygon row.
type Feature struct {
	Code     string
	Geometry orb.Geometry
	Area     float64
	Elev     float64
	Slope    float64
}

// Layer is a fixture table.
type Layer struct {
	Name     string
	Features []Feature
}

// Dataset holds the paths written by Write.
type Dataset struct {
	Dir        string
	GeoPackage string
	Style      string
	Statistics string
}

// Style is a QML descriptor with three classes: IICN (natural, high risk,
// #800000), IVCN (natural, no specific risk, #1a9641) and IIAA (anthropic,
// high risk, #fdae61).
const Style = `<!DOCTYPE qgis PUBLIC 'http://mrcc.com/qgis.dtd' 'SYSTEM'>
<qgis version="3.28.0">
  <renderer-v2 type="RuleRenderer">
    <rules key="{root}">
      <rule filter="&quot;cd_apcac&quot; = 'IICN'" symbol="0" label="Predominância natural - alto risco - Importância hidrológica extremamente alta"/>
      <rule filter="&quot;cd_apcac&quot; = 'IVCN'" symbol="1" label="Predominância natural - Regular - sem risco específico"/>
      <rule filter="&quot;cd_apcac&quot; = 'IIAA'" symbol="2" label="Predominância antrópica - alto risco - Importância hidrológica muito alta"/>
    </rules>
    <symbols>
      <symbol name="0" type="fill"><layer class="SimpleFill"><Option type="Map"><Option name="color" type="QString" value="128,0,0,255"/></Option></layer></symbol>
      <symbol name="1" type="fill"><layer class="SimpleFill"><Option type="Map"><Option name="color" type="QString" value="26,150,65,255"/></Option></layer></symbol>
      <symbol name="2" type="fill"><layer class="SimpleFill"><Option type="Map"><Option name="color" type="QString" value="253,174,97,255"/></Option></layer></symbol>
    </symbols>
  </renderer-v2>
</qgis>`

// Statistics is a pre-aggregated table for the Style classes.
const Statistics = `cd_apcac;bio_area_km2;bio_area_km2_p;zhi_area_km2;zhi_area_km2_p
IICN;1200.5;10.5;300.25;12.0
IVCN;5400;47.25;150.0;6.0
IIAA;80.75;0.7;900.5;36.0
ZZZZ;10;0.1;5;0.2
`

// Square returns a closed square polygon with lower-left corner (x, y).
func Square(x, y, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}
}

// DefaultLayers is a catalog with one selectable layer, its auxiliary
// low-resolution twin and an unrelated table.
func DefaultLayers() []Layer {
	features := []Feature{
		{Code: "IICN", Geometry: Square(-48, -16, 0.5), Area: 3000.5, Elev: 850, Slope: 4.2},
		{Code: "IVCN", Geometry: Square(-47.5, -16, 0.5), Area: 2900, Elev: 790, Slope: 3.1},
		{Code: "NONE", Geometry: Square(-48, -15.5, 0.5), Area: 10, Elev: 700, Slope: 1},
		{Code: "", Geometry: Square(-47.5, -15.5, 0.5), Area: 5, Elev: 650, Slope: 0.5},
	}
	return []Layer{
		{Name: "apcac_nunivotto3", Features: features},
		{Name: "apcac_nunivotto3_bho5k", Features: features[:1]},
		{Name: "other_table", Features: features[:1]},
	}
}

// Write writes a GeoPackage with layers, the Style descriptor and the
// Statistics table into dir.
func Write(dir string, layers ...Layer) (Dataset, error) {
	ds := Dataset{
		Dir:        dir,
		GeoPackage: filepath.Join(dir, "apcac.gpkg"),
		Style:      filepath.Join(dir, "apcac.qml"),
		Statistics: filepath.Join(dir, "apcac.csv"),
	}
	if err := WriteGeoPackage(ds.GeoPackage, layers...); err != nil {
		return ds, err
	}
	if err := os.WriteFile(ds.Style, []byte(Style), 0o644); err != nil {
		return ds, err
	}
	if err := os.WriteFile(ds.Statistics, []byte(Statistics), 0o644); err != nil {
		return ds, err
	}
	return ds, nil
}

// WriteGeoPackage creates a minimal GeoPackage holding layers.
func WriteGeoPackage(path string, layers ...Layer) error {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE gpkg_contents (table_name TEXT PRIMARY KEY, data_type TEXT NOT NULL, identifier TEXT, srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT NOT NULL, column_name TEXT NOT NULL, geometry_type_name TEXT NOT NULL, srs_id INTEGER NOT NULL, z TINYINT NOT NULL, m TINYINT NOT NULL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("creating gpkg metadata: %w", err)
		}
	}

	for _, l := range layers {
		ident := `"` + strings.ReplaceAll(l.Name, `"`, `""`) + `"`
		create := `CREATE TABLE ` + ident + ` (fid INTEGER PRIMARY KEY AUTOINCREMENT, geom BLOB, cd_apcac TEXT, area_km2 REAL, elev_mean REAL, slope_mean REAL)`
		if _, err := db.Exec(create); err != nil {
			return fmt.Errorf("creating %s: %w", l.Name, err)
		}
		if _, err := db.Exec(`INSERT INTO gpkg_contents VALUES (?, 'features', ?, 4326)`, l.Name, l.Name); err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', 'MULTIPOLYGON', 4326, 0, 0)`, l.Name); err != nil {
			return err
		}

		for _, f := range l.Features {
			blob, err := EncodeGeometry(f.Geometry)
			if err != nil {
				return err
			}
			var code any
			if f.Code != "" {
				code = f.Code
			}
			_, err = db.Exec(`INSERT INTO `+ident+` (geom, cd_apcac, area_km2, elev_mean, slope_mean) VALUES (?, ?, ?, ?, ?)`,
				blob, code, f.Area, f.Elev, f.Slope)
			if err != nil {
				return fmt.Errorf("inserting into %s: %w", l.Name, err)
			}
		}
	}
	return nil
}

// EncodeGeometry encodes g as a GeoPackage blob (little endian, EPSG:4326,
// no envelope). A nil geometry is written as the empty-geometry header.
func EncodeGeometry(g orb.Geometry) ([]byte, error) {
	var buf bytes.Buffer
	flags := byte(0x01)
	if g == nil {
		flags |= 0x10
	}
	buf.Write([]byte{'G', 'P', 0, flags})
	binary.Write(&buf, binary.LittleEndian, int32(4326))
	if g == nil {
		return buf.Bytes(), nil
	}

	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}
