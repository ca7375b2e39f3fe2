package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-apcac/internal/cache"
	"github.com/joeblew999/plat-apcac/internal/catalog"
	"github.com/joeblew999/plat-apcac/internal/charts"
	"github.com/joeblew999/plat-apcac/internal/render"
	"github.com/joeblew999/plat-apcac/internal/simplify"
	"github.com/joeblew999/plat-apcac/internal/stats"
	"github.com/joeblew999/plat-apcac/internal/style"
)

const (
	msgStyleError    = "Erro ao carregar estilos QML"
	msgLayersError   = "Erro ao listar camadas"
	msgNoLayers      = "Nenhuma camada APCAC encontrada"
	msgLayerError    = "Erro ao carregar camada"
	msgMapError      = "Não foi possível carregar os dados do mapa"
	msgStatsError    = "Erro ao carregar estatísticas"
	msgPopupUnknown  = "Dados do popup não reconhecidos"
	msgCodeMissing   = "Código APCAC não encontrado"
	msgFeatureAbsent = "Nenhuma feição com este código na camada"
)

// styleMap returns the parsed style, or an empty one and a notice.
func (d *Dashboard) styleMap(ctx context.Context) (*style.StyleMap, *Notice) {
	m, err := d.loadStyle(ctx)
	if err != nil {
		return style.NewStyleMap(), d.notice(LevelWarning, "", msgStyleError, err)
	}
	return m, nil
}

// Layers lists the selectable layers and the preselected one.
func (d *Dashboard) Layers(ctx context.Context) LayersView {
	names, err := d.loadLayers(ctx)
	if err != nil {
		return LayersView{Layers: []string{}, Notice: d.notice(LevelError, "", msgLayersError, err)}
	}
	if len(names) == 0 {
		return LayersView{Layers: []string{}, Notice: d.notice(LevelError, "", msgNoLayers, nil)}
	}
	return LayersView{Layers: names, Default: catalog.DefaultLayer(names, d.mapCfg.LayerPreference)}
}

// resolveLayer maps "" to the default layer and rejects names outside the
// catalog. An empty result with a nil error means there is no layer at all.
func (d *Dashboard) resolveLayer(ctx context.Context, layer string) (string, *Notice, error) {
	lv := d.Layers(ctx)
	if layer == "" {
		return lv.Default, lv.Notice, nil
	}
	if !slices.Contains(lv.Layers, layer) {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownLayer, layer)
	}
	return layer, nil, nil
}

// Style returns the class styles.
func (d *Dashboard) Style(ctx context.Context) StyleView {
	m, n := d.styleMap(ctx)
	return StyleView{Classes: m.Entries(), Fingerprint: m.Fingerprint(), Notice: n}
}

// Legend groups the class styles into the four legend categories. Classes
// left out of the legend are logged.
func (d *Dashboard) Legend(ctx context.Context) LegendView {
	m, n := d.styleMap(ctx)
	legend := style.BuildLegend(m)
	if len(legend.Dropped) > 0 {
		d.logger.Warn("Classes without a predominance left out of the legend",
			zap.Strings("codes", legend.Dropped))
	}
	return LegendView{Legend: legend, Notice: n}
}

// Charts builds the statistics charts. Unreadable statistics yield no charts
// and an unavailable status.
func (d *Dashboard) Charts(ctx context.Context) ChartsView {
	m, n := d.styleMap(ctx)
	rows, err := d.loadStatistics(ctx)
	if err != nil {
		return ChartsView{Result: charts.Build(nil, m), Notice: d.notice(LevelWarning, "", msgStatsError, err)}
	}
	return ChartsView{Result: charts.Build(rows, m), Notice: n}
}

// Statistics returns the statistics rows as read from the CSV file.
func (d *Dashboard) Statistics(ctx context.Context) StatisticsView {
	rows, err := d.loadStatistics(ctx)
	if err != nil {
		return StatisticsView{Rows: []stats.StatRow{}, Notice: d.notice(LevelWarning, "", msgStatsError, err)}
	}
	return StatisticsView{Rows: rows}
}

func (d *Dashboard) renderOptions() render.Options {
	return render.Options{PopupFields: d.mapCfg.PopupFields}
}

// Map renders layer ("" for the default layer) simplified with tolerance.
// The composed load, simplify and render step is memoized per dataset,
// layer, style content and tolerance. A layer that fails to load yields an
// empty map over the default viewport and a notice; only a name outside the
// catalog is an error (ErrUnknownLayer).
func (d *Dashboard) Map(ctx context.Context, layer string, tolerance float64) (MapView, error) {
	layer, n, err := d.resolveLayer(ctx, layer)
	if err != nil {
		return MapView{}, err
	}
	view := MapView{Layer: layer, Tolerance: tolerance}
	if layer == "" {
		view.Notice = n
		return view, nil
	}

	styles, n := d.styleMap(ctx)
	opts := d.renderOptions()
	key := cache.NewKey("render.Map", d.data.GeoPackage, layer, styles.Fingerprint(), tolerance,
		d.mapCfg.CodeColumns, opts.PopupFields)

	m, err := d.maps.Do(ctx, key, cache.Tiered(d.store, key, d.logger,
		func(ctx context.Context) (*render.RenderedMap, error) {
			features, err := d.loadFeatures(ctx, layer)
			if err != nil {
				return nil, err
			}
			return render.Render(layer, simplify.Features(features, tolerance), styles, opts), nil
		}))
	if err != nil {
		view.Map = render.Render(layer, nil, styles, opts)
		view.Notice = d.notice(LevelError, layer, msgMapError, err)
		return view, nil
	}
	view.Map = m
	view.Notice = n
	return view, nil
}

// Summary counts the features, classes and geodesic area of layer.
func (d *Dashboard) Summary(ctx context.Context, layer string) (SummaryView, error) {
	layer, n, err := d.resolveLayer(ctx, layer)
	if err != nil {
		return SummaryView{}, err
	}
	view := SummaryView{Layer: layer, Notice: n}
	if layer == "" {
		return view, nil
	}

	features, err := d.loadFeatures(ctx, layer)
	if err != nil {
		view.Notice = d.notice(LevelError, layer, fmt.Sprintf("%s %s", msgLayerError, layer), err)
		return view, nil
	}

	codes := make(map[string]struct{})
	var area float64
	for _, f := range features {
		if f.ClassCode != "" {
			codes[f.ClassCode] = struct{}{}
		}
		area += math.Abs(geo.Area(f.Geometry))
	}
	view.Polygons = len(features)
	view.Classes = len(codes)
	view.AreaKm2 = area / 1e6
	return view, nil
}

// Selection interprets the popup content of the last clicked feature and
// returns its class style and the attributes of the first feature of layer
// carrying the same code.
func (d *Dashboard) Selection(ctx context.Context, layer, popup string) (SelectionView, error) {
	layer, n, err := d.resolveLayer(ctx, layer)
	if err != nil {
		return SelectionView{}, err
	}
	view := SelectionView{Layer: layer, Attributes: []Attribute{}, Notice: n}

	if !strings.Contains(popup, render.CodeAlias+":") {
		view.Notice = &Notice{Level: LevelInfo, Message: msgPopupUnknown}
		return view, nil
	}
	code, ok := render.ParsePopupCode(popup, render.CodeAlias)
	if !ok {
		view.Notice = &Notice{Level: LevelInfo, Message: msgCodeMissing}
		return view, nil
	}
	view.Code = code

	styles, sn := d.styleMap(ctx)
	if cs, ok := styles.Lookup(code); ok {
		view.Style = &cs
	}
	if sn != nil {
		view.Notice = sn
	}
	if layer == "" {
		return view, nil
	}

	features, err := d.loadFeatures(ctx, layer)
	if err != nil {
		view.Notice = d.notice(LevelError, layer, fmt.Sprintf("%s %s", msgLayerError, layer), err)
		return view, nil
	}
	for _, f := range features {
		if f.ClassCode == code {
			view.Attributes = d.attributes(f)
			return view, nil
		}
	}
	view.Notice = &Notice{Level: LevelInfo, Message: msgFeatureAbsent}
	return view, nil
}

// attributes lists the non-blank properties of f other than the class code
// and the feature id, sorted by name.
func (d *Dashboard) attributes(f catalog.Feature) []Attribute {
	attrs := make([]Attribute, 0, len(f.Properties))
	for name, v := range f.Properties {
		if name == "fid" || slices.Contains(d.mapCfg.CodeColumns, name) {
			continue
		}
		value := render.FormatValue(v)
		if strings.TrimSpace(value) == "" {
			continue
		}
		attrs = append(attrs, Attribute{Name: name, Value: value})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	return attrs
}
