// Package server wires the dashboard service into an HTTP server.
package server

import (
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-apcac/internal/api"
	"github.com/joeblew999/plat-apcac/internal/api/dashboard"
	"github.com/joeblew999/plat-apcac/internal/config"
	"github.com/joeblew999/plat-apcac/internal/logger"
	"github.com/joeblew999/plat-apcac/internal/service"
	"github.com/joeblew999/plat-apcac/internal/templates"
)

// Server is the APCAC dashboard HTTP server.
type Server struct {
	config   config.Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	services *api.Services
	renderer *templates.Renderer
	logger   *zap.Logger
	redis    bool
}

// Option configures a Server.
type Option func(*Server)

// WithRedis marks the dashboard as sharing renders through Redis.
func WithRedis(enabled bool) Option {
	return func(s *Server) { s.redis = enabled }
}

// NewHumaConfig returns the API configuration shared by the server and the
// spec command.
func NewHumaConfig(cfg config.Config) huma.Config {
	humaConfig := huma.DefaultConfig("plat-apcac API", "1.0.0")
	humaConfig.Info.Description = "Dashboard API for the APCAC water conservation priority areas of the Cerrado: layers, rendered maps, legend and statistics."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s", cfg.Addr()), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())
	return humaConfig
}

// New creates the server. renderer supplies the page and fragment templates.
func New(cfg config.Config, dash *service.Dashboard, renderer *templates.Renderer, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaAPI := humago.New(mux, NewHumaConfig(cfg))

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		services: &api.Services{Dashboard: dash},
		renderer: renderer,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.handler = logger.AccessMiddleware(log)(mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.Data, s.redis, s.services.Dashboard).RegisterRoutes(s.humaAPI)

	// Dashboard page and its Datastar SSE routes
	h := dashboard.NewHandler(s.services.Dashboard, s.renderer, s.logger)
	h.RegisterRoutes(s.humaAPI)
	s.mux.HandleFunc("/", h.ServePage)
}
