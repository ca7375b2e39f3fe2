package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-apcac/internal/cache"
	"github.com/joeblew999/plat-apcac/internal/config"
	"github.com/joeblew999/plat-apcac/internal/db"
	"github.com/joeblew999/plat-apcac/internal/logger"
	"github.com/joeblew999/plat-apcac/internal/server"
	"github.com/joeblew999/plat-apcac/internal/service"
	"github.com/joeblew999/plat-apcac/internal/templates"
	"github.com/joeblew999/plat-apcac/internal/tiles"
)

// app is everything a command needs, built from the options.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	dash   *service.Dashboard
	store  *cache.RedisStore
	server *server.Server
}

func newApp(opts *Options) (*app, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	conn, err := db.Get(db.Config{DBName: "apcac"})
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	var svcOpts []service.Option
	if cfg.Cache.RedisURL != "" {
		store, err := cache.NewRedisStore(context.Background(), cfg.Cache.RedisURL, cfg.Cache.RedisTTL, log.Named("redis"))
		if err != nil {
			// Rendering still works from the in-process cache.
			log.Warn("Redis unavailable, sharing disabled", zap.Error(err))
		} else {
			a.store = store
			svcOpts = append(svcOpts, service.WithStore(store))
		}
	}
	a.dash = service.New(cfg, conn, log, svcOpts...)

	var fsys fs.FS = templates.Embedded()
	if opts.WebDir != "" {
		fsys = os.DirFS(opts.WebDir)
	}
	renderer, err := templates.New(fsys)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	a.server = server.New(cfg, a.dash, renderer, log, server.WithRedis(a.store != nil))
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	db.Close()
	a.log.Sync()
}

func mustApp(opts *Options) *app {
	a, err := newApp(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

// printOut writes v as YAML or indented JSON.
func printOut(v any, useYAML bool) error {
	var output []byte
	var err error
	if useYAML {
		output, err = yaml.Marshal(v)
	} else {
		output, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var a *app
		var httpServer *http.Server

		hooks.OnStart(func() {
			a = mustApp(opts)
			defer a.close()

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-apcac dashboard starting...\n")
			fmt.Printf("  Server:    %s\n", baseURL)
			fmt.Printf("  Data:      %s\n", a.cfg.Data.GeoPackage)
			fmt.Printf("  Tolerance: %g\n", a.cfg.Map.Tolerance)
			fmt.Println()
			fmt.Printf("  Dashboard: %s/\n", baseURL)
			fmt.Printf("  Docs:      %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI:   %s/openapi.json\n", baseURL)
			fmt.Println()

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				if err := a.dash.Warmup(ctx); err != nil {
					a.log.Warn("Warmup incomplete", zap.Error(err))
				}
			}()

			httpServer = &http.Server{Addr: a.cfg.Addr(), Handler: a.server}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Fatal("Server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
		})
	})

	cli.Root().Use = "apcac"
	cli.Root().Short = "Dashboard for the APCAC water conservation priority areas of the Cerrado"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			a := mustApp(opts)
			defer a.close()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			if err := printOut(a.server.OpenAPI(), useYAML); err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// layers subcommand: list the selectable layers
	layersCmd := &cobra.Command{
		Use:   "layers",
		Short: "List the APCAC layers of the GeoPackage",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			a := mustApp(opts)
			defer a.close()

			view := a.dash.Layers(cmd.Context())
			if view.Notice != nil {
				fmt.Fprintf(os.Stderr, "%s: %s\n", view.Notice.Message, view.Notice.Detail)
				os.Exit(1)
			}
			for _, name := range view.Layers {
				marker := " "
				if name == view.Default {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, name)
			}
		}),
	}
	cli.Root().AddCommand(layersCmd)

	// style subcommand: print the parsed class styles and legend
	styleCmd := &cobra.Command{
		Use:   "style",
		Short: "Print the class styles parsed from the QML descriptor (YAML by default)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			a := mustApp(opts)
			defer a.close()

			ctx := cmd.Context()
			sv := a.dash.Style(ctx)
			if sv.Notice != nil {
				fmt.Fprintf(os.Stderr, "%s: %s\n", sv.Notice.Message, sv.Notice.Detail)
				os.Exit(1)
			}
			useJSON, _ := cmd.Flags().GetBool("json")
			out := map[string]any{
				"fingerprint": sv.Fingerprint,
				"classes":     sv.Classes,
				"legend":      a.dash.Legend(ctx).Groups,
			}
			if err := printOut(out, !useJSON); err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling style: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	styleCmd.Flags().Bool("json", false, "Output as JSON instead of YAML")
	cli.Root().AddCommand(styleCmd)

	// tiles subcommand: export a layer as PMTiles vector tiles
	tilesCmd := &cobra.Command{
		Use:   "tiles [layer]",
		Short: "Export a layer as a PMTiles archive of styled vector tiles",
		Args:  cobra.MaximumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			a := mustApp(opts)
			defer a.close()

			layer := ""
			if len(args) == 1 {
				layer = args[0]
			}
			minZoom, _ := cmd.Flags().GetInt("min-zoom")
			maxZoom, _ := cmd.Flags().GetInt("max-zoom")
			output, _ := cmd.Flags().GetString("output")
			if err := exportTiles(cmd.Context(), a, layer, output, tiles.Options{MinZoom: minZoom, MaxZoom: maxZoom}); err != nil {
				fmt.Fprintf(os.Stderr, "Error exporting tiles: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	tilesCmd.Flags().StringP("output", "o", "apcac.pmtiles", "Output archive path")
	tilesCmd.Flags().Int("min-zoom", tiles.DefaultOptions.MinZoom, "Shallowest zoom level")
	tilesCmd.Flags().Int("max-zoom", tiles.DefaultOptions.MaxZoom, "Deepest zoom level")
	cli.Root().AddCommand(tilesCmd)

	cli.Run()
}

// exportTiles writes the archive next to output and moves it into place
// once complete.
func exportTiles(ctx context.Context, a *app, layer, output string, opts tiles.Options) error {
	tmp, err := os.CreateTemp(filepath.Dir(output), ".apcac-*.pmtiles")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	summary, err := a.dash.Tiles(ctx, layer, tmp, opts)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return err
	}
	fmt.Printf("Wrote %d tiles of %d features from %s to %s (zoom %d-%d)\n",
		summary.Tiles, summary.Features, summary.Layer, output, summary.MinZoom, summary.MaxZoom)
	return nil
}
