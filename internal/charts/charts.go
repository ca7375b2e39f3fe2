// Package charts builds the four bar-chart specifications shown under the
// map, one per statistics metric.
package charts

import (
	"sort"

	"github.com/joeblew999/plat-apcac/internal/stats"
	"github.com/joeblew999/plat-apcac/internal/style"
)

// Status tells whether charts could be built.
type Status string

const (
	StatusReady       Status = "ready"
	StatusUnavailable Status = "unavailable"
)

// UnavailableMessage is shown in place of the charts when there are no
// statistics.
const UnavailableMessage = "Dados de estatísticas não disponíveis"

const (
	xAxisTitle = "Classe APCAC"
	height     = 400
)

// Metric describes one chart.
type Metric struct {
	Column string
	Title  string
	YAxis  string
	value  func(stats.StatRow) float64
}

// Metrics lists the charted columns in display order.
var Metrics = []Metric{
	{
		Column: "bio_area_km2",
		Title:  "Área no Bioma Cerrado (km²)",
		YAxis:  "Área (km²)",
		value:  func(r stats.StatRow) float64 { return r.BioAreaKm2 },
	},
	{
		Column: "bio_area_km2_p",
		Title:  "Porcentagem no Bioma Cerrado (%)",
		YAxis:  "Porcentagem (%)",
		value:  func(r stats.StatRow) float64 { return r.BioAreaKm2P },
	},
	{
		Column: "zhi_area_km2",
		Title:  "Área na Zona de Influência Hidrológica (km²)",
		YAxis:  "Área (km²)",
		value:  func(r stats.StatRow) float64 { return r.ZhiAreaKm2 },
	},
	{
		Column: "zhi_area_km2_p",
		Title:  "Porcentagem na Zona de Influência Hidrológica (%)",
		YAxis:  "Porcentagem (%)",
		value:  func(r stats.StatRow) float64 { return r.ZhiAreaKm2P },
	},
}

// Bar is one class in a chart.
type Bar struct {
	Code  string  `json:"code" doc:"APCAC class code"`
	Value float64 `json:"value" doc:"Metric value"`
	Color string  `json:"color" doc:"Bar color (CSS hex)"`
}

// ChartSpec is a bar chart ready to draw.
type ChartSpec struct {
	Metric     string `json:"metric" doc:"Statistics column"`
	Title      string `json:"title" doc:"Chart title"`
	XAxis      string `json:"xAxis" doc:"X axis title"`
	YAxis      string `json:"yAxis" doc:"Y axis title"`
	Height     int    `json:"height" doc:"Chart height in pixels"`
	ShowLegend bool   `json:"showLegend" doc:"Whether to draw a legend"`
	Bars       []Bar  `json:"bars" doc:"Bars sorted by descending value"`
}

// Result is the outcome of Build.
type Result struct {
	Status  Status      `json:"status" enum:"ready,unavailable" doc:"Whether charts are available"`
	Message string      `json:"message,omitempty" doc:"Explanation when unavailable"`
	Charts  []ChartSpec `json:"charts" doc:"One chart per metric"`
}

// Build returns one chart per metric with bars colored by class style
// (gray when the class has none) and sorted by descending value; ties keep
// file order. No rows yields no charts and StatusUnavailable.
func Build(rows []stats.StatRow, styles *style.StyleMap) Result {
	if len(rows) == 0 {
		return Result{Status: StatusUnavailable, Message: UnavailableMessage, Charts: []ChartSpec{}}
	}

	res := Result{Status: StatusReady, Charts: make([]ChartSpec, 0, len(Metrics))}
	for _, m := range Metrics {
		bars := make([]Bar, len(rows))
		for i, r := range rows {
			bars[i] = Bar{Code: r.ClassCode, Value: m.value(r), Color: styles.Color(r.ClassCode)}
		}
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Value > bars[j].Value })

		res.Charts = append(res.Charts, ChartSpec{
			Metric: m.Column,
			Title:  m.Title,
			XAxis:  xAxisTitle,
			YAxis:  m.YAxis,
			Height: height,
			Bars:   bars,
		})
	}
	return res
}
