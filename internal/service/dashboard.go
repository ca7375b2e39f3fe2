package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-apcac/internal/cache"
	"github.com/joeblew999/plat-apcac/internal/catalog"
	"github.com/joeblew999/plat-apcac/internal/config"
	"github.com/joeblew999/plat-apcac/internal/render"
	"github.com/joeblew999/plat-apcac/internal/stats"
	"github.com/joeblew999/plat-apcac/internal/style"
)

// Dashboard runs the dashboard pipeline over one dataset. All loads and
// renders are memoized; cached values are shared between requests and are
// never modified after being stored. A Dashboard is safe for concurrent use.
type Dashboard struct {
	data   config.DataConfig
	mapCfg config.MapConfig
	db     *sqlx.DB
	logger *zap.Logger
	store  cache.Store
	events *EventBus

	styles     *cache.Cache[*style.StyleMap]
	layers     *cache.Cache[[]string]
	features   *cache.Cache[[]catalog.Feature]
	statistics *cache.Cache[[]stats.StatRow]
	maps       *cache.Cache[*render.RenderedMap]
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithStore adds a shared second cache level for rendered maps.
func WithStore(s cache.Store) Option {
	return func(d *Dashboard) { d.store = s }
}

// WithEvents publishes notices on bus.
func WithEvents(bus *EventBus) Option {
	return func(d *Dashboard) { d.events = bus }
}

// New creates a dashboard over the files in cfg.Data. db is the DuckDB
// connection used to read the statistics table.
func New(cfg config.Config, db *sqlx.DB, logger *zap.Logger, opts ...Option) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Layers are the only large values; bound them and the maps built
	// from them. The small per-file values stay unbounded.
	limit := cache.WithLimit(cfg.Cache.Limit)
	d := &Dashboard{
		data:       cfg.Data,
		mapCfg:     cfg.Map,
		db:         db,
		logger:     logger.Named("dashboard"),
		events:     NewEventBus(),
		styles:     cache.New[*style.StyleMap](),
		layers:     cache.New[[]string](),
		features:   cache.New[[]catalog.Feature](limit),
		statistics: cache.New[[]stats.StatRow](),
		maps:       cache.New[*render.RenderedMap](limit),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Events returns the bus notices are published on.
func (d *Dashboard) Events() *EventBus {
	return d.events
}

// DefaultTolerance returns the configured simplification tolerance.
func (d *Dashboard) DefaultTolerance() float64 {
	return d.mapCfg.Tolerance
}

// CacheStats reports the activity of each memo.
func (d *Dashboard) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"style":      d.styles.Stats(),
		"layers":     d.layers.Stats(),
		"features":   d.features.Stats(),
		"statistics": d.statistics.Stats(),
		"maps":       d.maps.Stats(),
	}
}

func (d *Dashboard) loadStyle(ctx context.Context) (*style.StyleMap, error) {
	key := cache.NewKey("style.Parse", d.data.Style)
	return d.styles.Do(ctx, key, func(context.Context) (*style.StyleMap, error) {
		return style.Parse(d.data.Style)
	})
}

func (d *Dashboard) loadLayers(ctx context.Context) ([]string, error) {
	key := cache.NewKey("catalog.ListLayers", d.data.GeoPackage)
	return d.layers.Do(ctx, key, func(ctx context.Context) ([]string, error) {
		return catalog.ListLayers(ctx, d.data.GeoPackage)
	})
}

func (d *Dashboard) loadFeatures(ctx context.Context, layer string) ([]catalog.Feature, error) {
	key := cache.NewKey("catalog.LoadLayer", d.data.GeoPackage, layer, d.mapCfg.CodeColumns)
	return d.features.Do(ctx, key, func(ctx context.Context) ([]catalog.Feature, error) {
		d.logger.Debug("Loading layer", zap.String("layer", layer))
		return catalog.LoadLayer(ctx, d.data.GeoPackage, layer, d.mapCfg.CodeColumns...)
	})
}

func (d *Dashboard) loadStatistics(ctx context.Context) ([]stats.StatRow, error) {
	key := cache.NewKey("stats.Load", d.data.Statistics)
	return d.statistics.Do(ctx, key, func(ctx context.Context) ([]stats.StatRow, error) {
		return stats.Load(ctx, d.db, d.data.Statistics)
	})
}

// notice logs a degraded result and tells open dashboards about it.
func (d *Dashboard) notice(level Level, layer, msg string, err error) *Notice {
	n := &Notice{Level: level, Message: msg}
	fields := []zap.Field{zap.String("notice", msg)}
	if layer != "" {
		fields = append(fields, zap.String("layer", layer))
	}
	if err != nil {
		n.Detail = err.Error()
		fields = append(fields, zap.Error(err))
	}
	if level == LevelInfo {
		d.logger.Info("Dashboard notice", fields...)
	} else {
		d.logger.Warn("Dashboard data degraded", fields...)
	}
	d.events.Publish(Event{Kind: "notice", Layer: layer, Notice: n})
	return n
}

// Warmup preloads the style, layer list, statistics and the default layer's
// map concurrently. It returns the first load error; the dashboard stays
// usable either way.
func (d *Dashboard) Warmup(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := d.loadStyle(ctx)
		return err
	})
	g.Go(func() error {
		_, err := d.loadStatistics(ctx)
		return err
	})
	g.Go(func() error {
		names, err := d.loadLayers(ctx)
		if err != nil {
			return err
		}
		layer := catalog.DefaultLayer(names, d.mapCfg.LayerPreference)
		if layer == "" {
			return nil
		}
		if _, err := d.loadFeatures(ctx, layer); err != nil {
			return err
		}
		if _, err := d.Map(ctx, layer, d.mapCfg.Tolerance); err != nil {
			return err
		}
		d.events.Publish(Event{Kind: "warmed", Layer: layer})
		return nil
	})
	return g.Wait()
}
