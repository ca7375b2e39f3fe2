// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-apcac/internal/config"
	"github.com/joeblew999/plat-apcac/internal/humastar"
	"github.com/joeblew999/plat-apcac/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Dashboard *service.Dashboard
}

// Types

type LayerInput struct {
	Name string `path:"name" doc:"Layer name" example:"apcac_nunivotto3"`
}

type MapInput struct {
	LayerInput
	Tolerance string `query:"tolerance" doc:"Simplification tolerance in layer units; default when empty" example:"0.001"`
}

type SelectionInput struct {
	Body struct {
		Layer string `json:"layer,omitempty" doc:"Layer name; the default layer when empty" example:"apcac_nunivotto3"`
		Popup string `json:"popup" doc:"Popup text of the clicked feature" example:"APCAC: IICN"`
	}
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// LayersBody lists the layers and links to the default layer's views.
type LayersBody struct {
	service.LayersView
}

// Actions points at the map and summary of the preselected layer.
func (b LayersBody) Actions() []humastar.Action {
	if b.Default == "" {
		return nil
	}
	base := "/api/v1/layers/" + url.PathEscape(b.Default)
	return []humastar.Action{
		{Rel: "map", Href: base + "/map", Method: "GET", Title: "Mapa"},
		{Rel: "summary", Href: base + "/summary", Method: "GET", Title: "Resumo"},
	}
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{name}/map", h.GetMap, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{name}/summary", h.GetSummary, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/selection", h.PostSelection, huma.OperationTags("layers"))
}

// RegisterStyle registers style and legend routes.
func (h *APIHandler) RegisterStyle(api huma.API) {
	huma.Get(api, "/api/v1/style", h.GetStyle, huma.OperationTags("style"))
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("style"))
}

// RegisterStatistics registers statistics and chart routes.
func (h *APIHandler) RegisterStatistics(api huma.API) {
	huma.Get(api, "/api/v1/statistics", h.GetStatistics, huma.OperationTags("statistics"))
	huma.Get(api, "/api/v1/charts", h.GetCharts, huma.OperationTags("statistics"))
}

// layerError maps service errors to HTTP errors.
func layerError(err error) error {
	if errors.Is(err, service.ErrUnknownLayer) {
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError("layer request failed", err)
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body LayersBody }, error) {
	return &struct{ Body LayersBody }{Body: LayersBody{h.svc.Dashboard.Layers(ctx)}}, nil
}

func (h *APIHandler) GetMap(ctx context.Context, input *MapInput) (*struct{ Body service.MapView }, error) {
	tolerance, err := config.ParseTolerance(input.Tolerance, h.svc.Dashboard.DefaultTolerance())
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	view, err := h.svc.Dashboard.Map(ctx, input.Name, tolerance)
	if err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body service.MapView }{Body: view}, nil
}

func (h *APIHandler) GetSummary(ctx context.Context, input *LayerInput) (*struct{ Body service.SummaryView }, error) {
	view, err := h.svc.Dashboard.Summary(ctx, input.Name)
	if err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body service.SummaryView }{Body: view}, nil
}

func (h *APIHandler) PostSelection(ctx context.Context, input *SelectionInput) (*struct{ Body service.SelectionView }, error) {
	view, err := h.svc.Dashboard.Selection(ctx, input.Body.Layer, input.Body.Popup)
	if err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body service.SelectionView }{Body: view}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *struct{}) (*struct{ Body service.StyleView }, error) {
	return &struct{ Body service.StyleView }{Body: h.svc.Dashboard.Style(ctx)}, nil
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*struct{ Body service.LegendView }, error) {
	return &struct{ Body service.LegendView }{Body: h.svc.Dashboard.Legend(ctx)}, nil
}

func (h *APIHandler) GetStatistics(ctx context.Context, input *struct{}) (*struct{ Body service.StatisticsView }, error) {
	return &struct{ Body service.StatisticsView }{Body: h.svc.Dashboard.Statistics(ctx)}, nil
}

func (h *APIHandler) GetCharts(ctx context.Context, input *struct{}) (*struct{ Body service.ChartsView }, error) {
	return &struct{ Body service.ChartsView }{Body: h.svc.Dashboard.Charts(ctx)}, nil
}

// RegisterRoutes registers all REST routes on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}
