package main

import (
	"fmt"
	"time"

	"github.com/joeblew999/plat-apcac/internal/config"
)

// Options defines all CLI flags and env vars for the dashboard server.
// Flags: --host, --port, --data-dir, --tolerance, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_TOLERANCE, ...
type Options struct {
	Host            string `doc:"Host to bind to" default:"0.0.0.0"`
	Port            int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir         string `doc:"Directory holding apcac.gpkg, apcac.qml and apcac.csv" default:"data/apcac"`
	GeoPackage      string `doc:"GeoPackage path, overrides the data directory"`
	Style           string `doc:"QML style path, overrides the data directory"`
	Statistics      string `doc:"Statistics CSV path, overrides the data directory"`
	Tolerance       string `doc:"Simplification tolerance in layer units" default:"0.001"`
	CodeColumns     string `doc:"Comma-separated candidate class code columns (default cd_apcac,apcac,codigo,class)"`
	LayerPreference string `doc:"Comma-separated preferred default layers (default apcac_nunivotto3,apcac_nunivotto4,apcac_nunivotto5)"`
	PopupFields     string `doc:"Comma-separated name:Alias popup fields"`
	CacheLimit      int    `doc:"Maximum memoized layers and maps, 0 for unbounded" default:"0"`
	RedisURL        string `doc:"Redis URL for sharing rendered maps (redis://host:6379/0)"`
	RedisTTL        string `doc:"Lifetime of shared renders" default:"1h"`
	LogLevel        string `doc:"Log level: debug, info, warn or error" default:"info"`
	WebDir          string `doc:"Template directory to use instead of the built-in templates"`
}

// buildConfig turns the options into a validated configuration.
func buildConfig(opts *Options) (config.Config, error) {
	cfg := config.Default()
	cfg.Server.Host = opts.Host
	cfg.Server.Port = opts.Port
	cfg.Log.Level = opts.LogLevel

	if opts.DataDir != "" {
		cfg.Data = config.Files(opts.DataDir)
	}
	if opts.GeoPackage != "" {
		cfg.Data.GeoPackage = opts.GeoPackage
	}
	if opts.Style != "" {
		cfg.Data.Style = opts.Style
	}
	if opts.Statistics != "" {
		cfg.Data.Statistics = opts.Statistics
	}

	tolerance, err := config.ParseTolerance(opts.Tolerance, cfg.Map.Tolerance)
	if err != nil {
		return cfg, err
	}
	cfg.Map.Tolerance = tolerance
	if cols := config.ParseList(opts.CodeColumns); cols != nil {
		cfg.Map.CodeColumns = cols
	}
	if prefs := config.ParseList(opts.LayerPreference); prefs != nil {
		cfg.Map.LayerPreference = prefs
	}
	if opts.PopupFields != "" {
		fields, err := config.ParsePopupFields(opts.PopupFields)
		if err != nil {
			return cfg, err
		}
		cfg.Map.PopupFields = fields
	}

	cfg.Cache.Limit = opts.CacheLimit
	cfg.Cache.RedisURL = opts.RedisURL
	if opts.RedisTTL != "" {
		ttl, err := time.ParseDuration(opts.RedisTTL)
		if err != nil {
			return cfg, fmt.Errorf("redis ttl %q: %w", opts.RedisTTL, err)
		}
		cfg.Cache.RedisTTL = ttl
	}

	return cfg, cfg.Validate()
}
