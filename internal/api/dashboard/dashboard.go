// Package dashboard serves the dashboard page and its Datastar SSE
// endpoints. The page posts its signals (layer, tolerance, popup) and the
// handlers answer with patched fragments and signals; the map itself is
// fetched by the page from the REST map endpoint.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-apcac/internal/config"
	"github.com/joeblew999/plat-apcac/internal/humastar"
	"github.com/joeblew999/plat-apcac/internal/service"
	"github.com/joeblew999/plat-apcac/internal/templates"
)

// Title is the page heading.
const Title = "APCAC - Áreas Prioritárias para Conservação de Água no Cerrado"

// Handler serves the dashboard.
type Handler struct {
	humastar.Handler
	dash   *service.Dashboard
	logger *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(dash *service.Dashboard, renderer *templates.Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		dash:    dash,
		logger:  logger.Named("sse"),
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/dashboard/layer", h.SelectLayer, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/selection", h.SelectFeature, huma.OperationTags("dashboard"))
	huma.Get(api, "/api/v1/dashboard/events", h.Events, huma.OperationTags("dashboard"))
}

// Page is the data of the dashboard template.
type Page struct {
	Title     string
	Signals   string
	Layers    service.LayersView
	Notices   []*service.Notice
	Summary   service.SummaryView
	Selection service.SelectionView
	Legend    service.LegendView
	Charts    service.ChartsView
}

func formatTolerance(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// page assembles the initial page for the default layer.
func (h *Handler) page(ctx context.Context) (Page, error) {
	layers := h.dash.Layers(ctx)
	summary, err := h.dash.Summary(ctx, layers.Default)
	if err != nil {
		return Page{}, err
	}
	tolerance := formatTolerance(h.dash.DefaultTolerance())
	signals, err := json.Marshal(map[string]any{
		"layer":        layers.Default,
		"tolerance":    tolerance,
		"popup":        "",
		"maplayer":     layers.Default,
		"maptolerance": tolerance,
		"error":        "",
	})
	if err != nil {
		return Page{}, err
	}

	p := Page{
		Title:     Title,
		Signals:   string(signals),
		Layers:    layers,
		Summary:   summary,
		Selection: service.SelectionView{Layer: layers.Default},
		Legend:    h.dash.Legend(ctx),
		Charts:    h.dash.Charts(ctx),
	}
	if layers.Notice != nil {
		p.Notices = append(p.Notices, layers.Notice)
	}
	return p, nil
}

// ServePage renders the full dashboard page.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	p, err := h.page(r.Context())
	if err != nil {
		h.logger.Error("Failed to assemble dashboard", zap.Error(err))
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}
	html, err := h.Renderer.Render("dashboard", p)
	if err != nil {
		h.logger.Error("Failed to render dashboard", zap.Error(err))
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// patchNotices replaces the notice area with the non-nil notices.
func (h *Handler) patchNotices(sse humastar.SSE, notices ...*service.Notice) {
	shown := make([]*service.Notice, 0, len(notices))
	for _, n := range notices {
		if n != nil && !slices.Contains(shown, n) {
			shown = append(shown, n)
		}
	}
	sse.Patch(h.Fragment("notices", shown), "#notices")
}

// SelectLayer re-runs the pipeline for the layer and tolerance signals,
// patches the side panels and tells the page which map to load.
func (h *Handler) SelectLayer(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	layer := signals.String("layer")
	raw := signals.String("tolerance")

	return h.Stream(func(sse humastar.SSE) {
		tolerance, err := config.ParseTolerance(raw, h.dash.DefaultTolerance())
		if err != nil {
			h.patchNotices(sse, &service.Notice{
				Level: service.LevelWarning, Message: "Tolerância inválida", Detail: err.Error(),
			})
			sse.Error(err.Error())
			return
		}

		mv, err := h.dash.Map(ctx, layer, tolerance)
		if err != nil {
			h.patchNotices(sse, &service.Notice{
				Level: service.LevelError, Message: "Camada desconhecida", Detail: layer,
			})
			sse.Error(err.Error())
			return
		}
		summary, _ := h.dash.Summary(ctx, mv.Layer)

		h.patchNotices(sse, mv.Notice, summary.Notice)
		sse.Patch(h.Fragment("summary", summary), "#summary")
		sse.Patch(h.Fragment("selection", service.SelectionView{Layer: mv.Layer}), "#selection")
		sse.Patch(h.Fragment("legend", h.dash.Legend(ctx)), "#legend")
		sse.Patch(h.Fragment("charts", h.dash.Charts(ctx)), "#charts")
		sse.Signals(map[string]any{
			"maplayer":     mv.Layer,
			"maptolerance": formatTolerance(tolerance),
			"popup":        "",
			"error":        "",
		})
	}), nil
}

// SelectFeature shows the class and attributes of the clicked feature.
func (h *Handler) SelectFeature(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	layer := signals.String("maplayer")
	if layer == "" {
		layer = signals.String("layer")
	}
	popup := signals.String("popup")

	return h.Stream(func(sse humastar.SSE) {
		view, err := h.dash.Selection(ctx, layer, popup)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.Fragment("selection", view), "#selection")
	}), nil
}

// Events streams dashboard notices to the page until it disconnects.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		bus := h.dash.Events()
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				switch ev.Kind {
				case "notice":
					h.patchNotices(sse, ev.Notice)
				case "warmed":
					sse.Signals(map[string]any{"ready": true})
				}
			}
		}
	}), nil
}
