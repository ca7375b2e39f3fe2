// Package stats reads the pre-aggregated APCAC statistics table.
package stats

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
)

// StatRow holds the areas of one class code in the biome and in the
// hydrological influence zone.
type StatRow struct {
	ClassCode   string  `db:"cd_apcac" json:"cd_apcac" doc:"APCAC class code"`
	BioAreaKm2  float64 `db:"bio_area_km2" json:"bio_area_km2" doc:"Area in the Cerrado biome (km²)"`
	BioAreaKm2P float64 `db:"bio_area_km2_p" json:"bio_area_km2_p" doc:"Share of the Cerrado biome (%)"`
	ZhiAreaKm2  float64 `db:"zhi_area_km2" json:"zhi_area_km2" doc:"Area in the hydrological influence zone (km²)"`
	ZhiAreaKm2P float64 `db:"zhi_area_km2_p" json:"zhi_area_km2_p" doc:"Share of the hydrological influence zone (%)"`
}

// ReadError reports a statistics table that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading statistics %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

const query = `SELECT
	CAST(cd_apcac AS VARCHAR) AS cd_apcac,
	COALESCE(CAST(bio_area_km2 AS DOUBLE), 0) AS bio_area_km2,
	COALESCE(CAST(bio_area_km2_p AS DOUBLE), 0) AS bio_area_km2_p,
	COALESCE(CAST(zhi_area_km2 AS DOUBLE), 0) AS zhi_area_km2,
	COALESCE(CAST(zhi_area_km2_p AS DOUBLE), 0) AS zhi_area_km2_p
FROM read_csv(%s, delim = ';', header = true)
WHERE cd_apcac IS NOT NULL`

// Load reads the ';'-separated statistics file at path through DuckDB, one
// row per class code in file order.
func Load(ctx context.Context, db *sqlx.DB, path string) ([]StatRow, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	var rows []StatRow
	if err := db.SelectContext(ctx, &rows, fmt.Sprintf(query, quoteLiteral(path))); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return rows, nil
}

// quoteLiteral quotes s as a SQL string literal. read_csv takes its path as a
// table function argument, which cannot be bound as a parameter.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
