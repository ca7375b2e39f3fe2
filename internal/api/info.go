package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-apcac/internal/cache"
	"github.com/joeblew999/plat-apcac/internal/config"
	"github.com/joeblew999/plat-apcac/internal/service"
)

type InfoHandler struct {
	data  config.DataConfig
	redis bool
	stats func() map[string]cache.Stats
}

func NewInfoHandler(data config.DataConfig, redis bool, dash *service.Dashboard) *InfoHandler {
	return &InfoHandler{data: data, redis: redis, stats: dash.CacheStats}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string                 `json:"name" doc:"Service name"`
	Version    string                 `json:"version" doc:"Service version"`
	GeoPackage string                 `json:"geopackage" doc:"GeoPackage path"`
	Style      string                 `json:"style" doc:"QML style path"`
	Statistics string                 `json:"statistics" doc:"Statistics CSV path"`
	Redis      bool                   `json:"redis" doc:"Whether renders are shared through Redis"`
	Caches     map[string]cache.Stats `json:"caches" doc:"Per-cache counters"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "plat-apcac",
		Version:    "0.1.0",
		GeoPackage: h.data.GeoPackage,
		Style:      h.data.Style,
		Statistics: h.data.Statistics,
		Redis:      h.redis,
		Caches:     h.stats(),
	}}, nil
}
