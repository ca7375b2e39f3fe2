package charts

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-apcac/internal/stats"
	"github.com/joeblew999/plat-apcac/internal/style"
)

var rows = []stats.StatRow{
	{ClassCode: "IICN", BioAreaKm2: 1200.5, BioAreaKm2P: 10.5, ZhiAreaKm2: 300.25, ZhiAreaKm2P: 12},
	{ClassCode: "IVCN", BioAreaKm2: 5400, BioAreaKm2P: 47.25, ZhiAreaKm2: 150, ZhiAreaKm2P: 6},
	{ClassCode: "IIAA", BioAreaKm2: 80.75, BioAreaKm2P: 0.7, ZhiAreaKm2: 900.5, ZhiAreaKm2P: 36},
	{ClassCode: "ZZZZ", BioAreaKm2: 10, BioAreaKm2P: 0.1, ZhiAreaKm2: 5, ZhiAreaKm2P: 0.2},
}

var styles = style.NewStyleMap(
	style.ClassStyle{Code: "IICN", Color: "#800000"},
	style.ClassStyle{Code: "IVCN", Color: "#1a9641"},
	style.ClassStyle{Code: "IIAA", Color: "#fdae61"},
)

func TestBuild(t *testing.T) {
	res := Build(rows, styles)

	assert.Equal(t, StatusReady, res.Status)
	assert.Empty(t, res.Message)
	require.Len(t, res.Charts, 4)

	first := res.Charts[0]
	assert.Equal(t, "bio_area_km2", first.Metric)
	assert.Equal(t, "Área no Bioma Cerrado (km²)", first.Title)
	assert.Equal(t, "Classe APCAC", first.XAxis)
	assert.Equal(t, "Área (km²)", first.YAxis)
	assert.Equal(t, 400, first.Height)
	assert.False(t, first.ShowLegend)

	want := []Bar{
		{Code: "IVCN", Value: 5400, Color: "#1a9641"},
		{Code: "IICN", Value: 1200.5, Color: "#800000"},
		{Code: "IIAA", Value: 80.75, Color: "#fdae61"},
		{Code: "ZZZZ", Value: 10, Color: style.DefaultColor},
	}
	if diff := cmp.Diff(want, first.Bars); diff != "" {
		t.Errorf("bars mismatch (-want +got):\n%s", diff)
	}

	var metrics []string
	for _, c := range res.Charts {
		metrics = append(metrics, c.Metric)
	}
	assert.Equal(t, []string{"bio_area_km2", "bio_area_km2_p", "zhi_area_km2", "zhi_area_km2_p"}, metrics)
	assert.Equal(t, "IIAA", res.Charts[3].Bars[0].Code)
	assert.Equal(t, "Porcentagem na Zona de Influência Hidrológica (%)", res.Charts[3].Title)
}

func TestBuildBarsNonIncreasing(t *testing.T) {
	for _, c := range Build(rows, styles).Charts {
		require.Len(t, c.Bars, len(rows))
		for i := 1; i < len(c.Bars); i++ {
			assert.GreaterOrEqual(t, c.Bars[i-1].Value, c.Bars[i].Value, c.Metric)
		}
	}
}

func TestBuildStableOnTies(t *testing.T) {
	tied := []stats.StatRow{{ClassCode: "B", BioAreaKm2: 1}, {ClassCode: "A", BioAreaKm2: 1}, {ClassCode: "C", BioAreaKm2: 2}}
	bars := Build(tied, nil).Charts[0].Bars

	assert.Equal(t, []string{"C", "B", "A"}, []string{bars[0].Code, bars[1].Code, bars[2].Code})
}

func TestBuildUnavailable(t *testing.T) {
	for _, in := range [][]stats.StatRow{nil, {}} {
		res := Build(in, styles)
		assert.Equal(t, StatusUnavailable, res.Status)
		assert.Equal(t, UnavailableMessage, res.Message)
		assert.Empty(t, res.Charts)
	}
}

func TestBuildDoesNotReorderInput(t *testing.T) {
	in := append([]stats.StatRow(nil), rows...)
	Build(in, styles)
	assert.Equal(t, rows, in)
}
