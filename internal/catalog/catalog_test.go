package catalog

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-apcac/internal/fixtures"
)

func writeDataset(t *testing.T) fixtures.Dataset {
	t.Helper()
	ds, err := fixtures.Write(t.TempDir(), fixtures.DefaultLayers()...)
	require.NoError(t, err)
	return ds
}

func TestFilterLayers(t *testing.T) {
	got := FilterLayers([]string{"apcac_nunivotto3", "apcac_nunivotto3_bho5k", "other_table"})
	assert.Equal(t, []string{"apcac_nunivotto3"}, got)

	got = FilterLayers([]string{"apcac_nunivotto5", "apcacx", "rtree_apcac_nunivotto5_geom", "apcac_nunivotto4"})
	assert.Equal(t, []string{"apcac_nunivotto4", "apcac_nunivotto5"}, got)

	assert.Empty(t, FilterLayers(nil))
}

func TestDefaultLayer(t *testing.T) {
	tests := []struct {
		layers []string
		want   string
	}{
		{[]string{"apcac_a", "apcac_nunivotto4", "apcac_nunivotto3"}, "apcac_nunivotto3"},
		{[]string{"apcac_a", "apcac_nunivotto5", "apcac_nunivotto4"}, "apcac_nunivotto4"},
		{[]string{"apcac_a", "apcac_nunivotto5"}, "apcac_nunivotto5"},
		{[]string{"apcac_b", "apcac_a"}, "apcac_b"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultLayer(tt.layers, DefaultLayerPreference), "%v", tt.layers)
	}
}

func TestResolveCodeColumn(t *testing.T) {
	col, ok := ResolveCodeColumn([]string{"fid", "class", "codigo"}, DefaultCodeColumns)
	assert.True(t, ok)
	assert.Equal(t, "codigo", col)

	_, ok = ResolveCodeColumn([]string{"fid", "geom"}, DefaultCodeColumns)
	assert.False(t, ok)
}

func TestListLayers(t *testing.T) {
	ds := writeDataset(t)

	layers, err := ListLayers(context.Background(), ds.GeoPackage)
	require.NoError(t, err)
	assert.Equal(t, []string{"apcac_nunivotto3"}, layers)
}

func TestListLayersMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.gpkg")

	layers, err := ListLayers(context.Background(), path)
	assert.Nil(t, layers)

	var re *ReadError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, path, re.Path)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "catalog read must not create the file")
}

func TestListLayersNotSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.gpkg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite, just some text padding out the header"), 0o644))

	_, err := ListLayers(context.Background(), path)
	var re *ReadError
	assert.True(t, errors.As(err, &re))
}

func TestLoadLayer(t *testing.T) {
	ds := writeDataset(t)

	features, err := LoadLayer(context.Background(), ds.GeoPackage, "apcac_nunivotto3")
	require.NoError(t, err)
	require.Len(t, features, 4)

	first := features[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "IICN", first.ClassCode)
	assert.Equal(t, "IICN", first.Properties["cd_apcac"])
	assert.InDelta(t, 3000.5, first.Properties["area_km2"], 1e-9)
	assert.NotContains(t, first.Properties, "geom")

	poly, ok := first.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, fixtures.Square(-48, -16, 0.5), poly)

	assert.Equal(t, "", features[3].ClassCode)
	assert.Nil(t, features[3].Properties["cd_apcac"])
}

func TestLoadLayerFallbackColumn(t *testing.T) {
	ds := writeDataset(t)

	features, err := LoadLayer(context.Background(), ds.GeoPackage, "apcac_nunivotto3", "missing", "area_km2")
	require.NoError(t, err)
	assert.Equal(t, "3000.5", features[0].ClassCode)
}

func TestLoadLayerErrors(t *testing.T) {
	ds := writeDataset(t)
	ctx := context.Background()

	_, err := LoadLayer(ctx, ds.GeoPackage, `apcac_x"; DROP TABLE other_table; --`)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.Error(), "no such layer")

	_, err = LoadLayer(ctx, filepath.Join(t.TempDir(), "nope.gpkg"), "apcac_nunivotto3")
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "apcac_nunivotto3", le.Layer)
}

func TestLoadLayerSkipsEmptyGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpkg")
	require.NoError(t, fixtures.WriteGeoPackage(path, fixtures.Layer{
		Name: "apcac_empty",
		Features: []fixtures.Feature{
			{Code: "A", Geometry: nil},
			{Code: "B", Geometry: fixtures.Square(0, 0, 1)},
		},
	}))

	features, err := LoadLayer(context.Background(), path, "apcac_empty")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "B", features[0].ClassCode)
}

func TestDecodeGeometry(t *testing.T) {
	poly := fixtures.Square(1, 2, 3)
	body, err := wkb.Marshal(poly, binary.BigEndian)
	require.NoError(t, err)

	// Big-endian header with a 32 byte XY envelope.
	blob := append([]byte{'G', 'P', 0, 0x02, 0, 0, 0x10, 0xe6}, make([]byte, 32)...)
	blob = append(blob, body...)

	g, err := decodeGeometry(blob)
	require.NoError(t, err)
	assert.Equal(t, poly, g)

	_, err = decodeGeometry([]byte("XP000000"))
	assert.ErrorIs(t, err, errNotGeoPackage)

	_, err = decodeGeometry([]byte{'G', 'P', 0, 0x20, 0, 0, 0, 0, 1})
	assert.ErrorIs(t, err, errExtendedGeom)

	_, err = decodeGeometry([]byte{'G', 'P', 0, 0x0e, 0, 0, 0, 0, 1})
	assert.ErrorIs(t, err, errInvalidEnvelope)

	_, err = decodeGeometry([]byte{'G', 'P', 0, 0x02, 0, 0, 0, 0, 1})
	assert.Error(t, err)

	g, err = decodeGeometry([]byte{'G', 'P', 0, 0x11, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Nil(t, g)
}
