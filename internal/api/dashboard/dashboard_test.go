package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-apcac/internal/config"
	"github.com/joeblew999/plat-apcac/internal/db"
	"github.com/joeblew999/plat-apcac/internal/fixtures"
	"github.com/joeblew999/plat-apcac/internal/service"
	"github.com/joeblew999/plat-apcac/internal/templates"
)

type env struct {
	mux  *http.ServeMux
	api  humatest.TestAPI
	dash *service.Dashboard
	ds   fixtures.Dataset
}

func setup(t *testing.T) env {
	t.Helper()
	ds, err := fixtures.Write(t.TempDir(), fixtures.DefaultLayers()...)
	require.NoError(t, err)
	conn, err := db.Open(db.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cfg := config.Default()
	cfg.Data = config.Files(ds.Dir)
	dash := service.New(cfg, conn, zap.NewNop())

	renderer, err := templates.New(templates.Embedded())
	require.NoError(t, err)

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("APCAC test", "1.0.0"))
	h := NewHandler(dash, renderer, nil)
	h.RegisterRoutes(api)
	mux.HandleFunc("/", h.ServePage)

	return env{mux: mux, api: humatest.Wrap(t, api), dash: dash, ds: ds}
}

func TestServePage(t *testing.T) {
	e := setup(t)

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, Title)
	assert.Contains(t, body, `<option value="apcac_nunivotto3" selected>apcac_nunivotto3</option>`)
	assert.Contains(t, body, "maplayer")
	assert.Contains(t, body, "<dd>4</dd>")
	assert.Contains(t, body, "Clique em um polígono no mapa.")

	rec = httptest.NewRecorder()
	e.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServePageWithoutCatalog(t *testing.T) {
	e := setup(t)
	require.NoError(t, os.Remove(e.ds.GeoPackage))

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Erro ao listar camadas")
	assert.Contains(t, rec.Body.String(), "Nenhuma camada disponível")
}

func TestSelectLayer(t *testing.T) {
	e := setup(t)

	resp := e.api.Post("/api/v1/dashboard/layer", map[string]any{
		"layer": "apcac_nunivotto3", "tolerance": "0.01",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	body := resp.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "#summary")
	assert.Contains(t, body, "#legend")
	assert.Contains(t, body, "#charts")
	assert.Contains(t, body, "datastar-patch-signals")
	assert.Contains(t, body, `"maplayer":"apcac_nunivotto3"`)
	assert.Contains(t, body, `"maptolerance":"0.01"`)

	// The map for the page's follow-up fetch is already rendered.
	assert.Equal(t, 1, e.dash.CacheStats()["maps"].Entries)
}

func TestSelectLayerErrors(t *testing.T) {
	e := setup(t)

	resp := e.api.Post("/api/v1/dashboard/layer", map[string]any{"layer": "nope"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Camada desconhecida")
	assert.Contains(t, resp.Body.String(), `"error"`)

	resp = e.api.Post("/api/v1/dashboard/layer", map[string]any{"layer": "apcac_nunivotto3", "tolerance": "-2"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Tolerância inválida")
	assert.NotContains(t, resp.Body.String(), "maplayer")
}

func TestSelectFeature(t *testing.T) {
	e := setup(t)

	resp := e.api.Post("/api/v1/dashboard/selection", map[string]any{
		"maplayer": "apcac_nunivotto3",
		"popup":    "APCAC: IICN\nÁrea (km²): 3000.5",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, "#selection")
	assert.Contains(t, body, "<code>IICN</code>")
	assert.Contains(t, body, "3000.5")

	resp = e.api.Post("/api/v1/dashboard/selection", map[string]any{"popup": "something else"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Dados do popup não reconhecidos")
}

func TestEvents(t *testing.T) {
	e := setup(t)
	require.NoError(t, os.Remove(e.ds.Style))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.mux.ServeHTTP(rec, req)
	}()

	// Notices published before the stream subscribes are dropped, so keep
	// triggering until the stream has had time to pick one up.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		e.dash.Style(context.Background())
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	assert.True(t, strings.Contains(rec.Body.String(), "Erro ao carregar estilos QML"))
}
