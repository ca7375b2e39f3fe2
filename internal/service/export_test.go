package service

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-apcac/internal/pmtiles"
	"github.com/joeblew999/plat-apcac/internal/tiles"
)

func TestTiles(t *testing.T) {
	d, _ := setup(t)

	var buf bytes.Buffer
	summary, err := d.Tiles(context.Background(), "", &buf, tiles.Options{MinZoom: 4, MaxZoom: 6})
	require.NoError(t, err)
	assert.Equal(t, "apcac_nunivotto3", summary.Layer)
	assert.Equal(t, 4, summary.Features)
	assert.Positive(t, summary.Tiles)

	h, err := pmtiles.DeserializeHeader(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint64(summary.Tiles), h.TileEntriesCount)
}

func TestTilesErrors(t *testing.T) {
	d, ds := setup(t)
	ctx := context.Background()

	_, err := d.Tiles(ctx, "nope", &bytes.Buffer{}, tiles.DefaultOptions)
	assert.ErrorIs(t, err, ErrUnknownLayer)

	_, err = d.Tiles(ctx, "", &bytes.Buffer{}, tiles.Options{MinZoom: 5, MaxZoom: 1})
	assert.Error(t, err)

	require.NoError(t, os.Remove(ds.Style))
	_, err = d.Tiles(ctx, "", &bytes.Buffer{}, tiles.DefaultOptions)
	assert.Error(t, err)
}
