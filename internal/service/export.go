package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/joeblew999/plat-apcac/internal/tiles"
)

// Tiles writes layer ("" for the default layer) to w as a PMTiles archive
// of vector tiles styled with the class colors. Unlike the dashboard views
// it fails on unreadable inputs, since a partial archive is of no use.
func (d *Dashboard) Tiles(ctx context.Context, layer string, w io.Writer, opts tiles.Options) (tiles.Summary, error) {
	layer, n, err := d.resolveLayer(ctx, layer)
	if err != nil {
		return tiles.Summary{}, err
	}
	if layer == "" {
		if n != nil {
			return tiles.Summary{}, fmt.Errorf("%s: %s", n.Message, n.Detail)
		}
		return tiles.Summary{}, fmt.Errorf("%w: no layer available", ErrUnknownLayer)
	}

	styles, err := d.loadStyle(ctx)
	if err != nil {
		return tiles.Summary{}, err
	}
	features, err := d.loadFeatures(ctx, layer)
	if err != nil {
		return tiles.Summary{}, err
	}

	summary, err := tiles.Write(w, layer, features, styles, opts)
	if err != nil {
		return summary, err
	}
	d.logger.Info("Layer tiled",
		zap.String("layer", layer),
		zap.Int("features", summary.Features),
		zap.Int("tiles", summary.Tiles),
		zap.Int("min_zoom", summary.MinZoom),
		zap.Int("max_zoom", summary.MaxZoom))
	return summary, nil
}
