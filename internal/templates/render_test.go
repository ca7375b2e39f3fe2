package templates

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-apcac/internal/charts"
	"github.com/joeblew999/plat-apcac/internal/service"
	"github.com/joeblew999/plat-apcac/internal/style"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Embedded())
	require.NoError(t, err)
	return r
}

func TestNotice(t *testing.T) {
	r := newRenderer(t)

	out, err := r.Render("notice", &service.Notice{Level: service.LevelWarning, Message: "Erro ao carregar estilos QML", Detail: "open apcac.qml: <missing>"})
	require.NoError(t, err)
	assert.Contains(t, out, `notice-warning`)
	assert.Contains(t, out, "Erro ao carregar estilos QML")
	assert.Contains(t, out, "&lt;missing&gt;")

	out, err = r.Render("notice", (*service.Notice)(nil))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLegend(t *testing.T) {
	r := newRenderer(t)
	view := service.LegendView{Legend: style.Legend{Groups: []style.LegendGroup{{
		Category: "Predominância Alta",
		Entries:  []style.LegendEntry{{Code: "IICN", Label: "Alta - Cerrado nativo", ShortLabel: "Cerrado nativo", Color: "#800000"}},
	}}}}

	out, err := r.Render("legend", view)
	require.NoError(t, err)
	assert.Contains(t, out, "Predominância Alta")
	assert.Contains(t, out, "<code>IICN</code> Cerrado nativo")
	assert.Contains(t, out, "background: #800000")
}

func TestLegendEmpty(t *testing.T) {
	out, err := newRenderer(t).Render("legend", service.LegendView{})
	require.NoError(t, err)
	assert.Contains(t, out, "Estilos não disponíveis.")
}

func TestCharts(t *testing.T) {
	r := newRenderer(t)
	view := service.ChartsView{Result: charts.Result{Status: charts.StatusReady, Charts: []charts.ChartSpec{{
		Metric: "bio_area_km2", Title: "Área de biodiversidade", XAxis: "Classe APCAC", YAxis: "km²", Height: 400,
		Bars: []charts.Bar{{Code: "IVCN", Value: 200, Color: "#1a9641"}, {Code: "IICN", Value: 50, Color: "#800000"}},
	}}}}

	out, err := r.Render("charts", view)
	require.NoError(t, err)
	assert.Contains(t, out, "height: 400px")
	assert.Contains(t, out, "height: 100.00%")
	assert.Contains(t, out, "height: 25.00%")
	assert.Contains(t, out, "IVCN: 200.00")
}

func TestChartsUnavailable(t *testing.T) {
	out, err := newRenderer(t).Render("charts", service.ChartsView{
		Result: charts.Result{Status: charts.StatusUnavailable, Message: charts.UnavailableMessage},
	})
	require.NoError(t, err)
	assert.Contains(t, out, charts.UnavailableMessage)
	assert.NotContains(t, out, "<figure")
}

func TestSummaryAndSelection(t *testing.T) {
	r := newRenderer(t)

	out, err := r.Render("summary", service.SummaryView{Layer: "apcac_nunivotto3", Polygons: 4, Classes: 3, AreaKm2: 11923.44})
	require.NoError(t, err)
	assert.Contains(t, out, "<dd>4</dd>")
	assert.Contains(t, out, "11923.4 km²")

	out, err = r.Render("selection", service.SelectionView{
		Layer: "apcac_nunivotto3", Code: "IICN",
		Style:      &style.ClassStyle{Code: "IICN", Label: "Alta - Cerrado nativo", Color: "#800000"},
		Attributes: []service.Attribute{{Name: "area_km2", Value: "3000.5"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "<th>area_km2</th><td>3000.5</td>")
	assert.Contains(t, out, "Alta - Cerrado nativo")

	out, err = r.Render("selection", service.SelectionView{})
	require.NoError(t, err)
	assert.Contains(t, out, "Clique em um polígono no mapa.")
}

func TestLayerOptions(t *testing.T) {
	r := newRenderer(t)

	out, err := r.Render("layer-options", service.LayersView{Layers: []string{"a", "b"}, Default: "b"})
	require.NoError(t, err)
	assert.Contains(t, out, `<option value="b" selected>b</option>`)
	assert.Contains(t, out, `<option value="a">a</option>`)

	out, err = r.Render("layer-options", service.LayersView{Layers: []string{}})
	require.NoError(t, err)
	assert.Contains(t, out, "Nenhuma camada disponível")
}

func TestReload(t *testing.T) {
	r := newRenderer(t)
	fsys := fstest.MapFS{
		"dashboard.html":        {Data: []byte(`{{define "dashboard"}}page {{.}}{{end}}`)},
		"fragments/notice.html": {Data: []byte(`{{define "notice"}}changed{{end}}`)},
	}

	require.NoError(t, r.Reload(fsys))
	out, err := r.Render("notice", nil)
	require.NoError(t, err)
	assert.Equal(t, "changed", out)

	assert.Error(t, r.Reload(fstest.MapFS{}))
	out, err = r.Render("dashboard", "x")
	require.NoError(t, err)
	assert.Equal(t, "page x", out)
}
