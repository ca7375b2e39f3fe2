// Package config assembles and validates the service configuration.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/joeblew999/plat-apcac/internal/catalog"
	"github.com/joeblew999/plat-apcac/internal/render"
	"github.com/joeblew999/plat-apcac/internal/simplify"
)

// Config is the resolved configuration of the dashboard server.
type Config struct {
	Server ServerConfig
	Data   DataConfig
	Map    MapConfig
	Cache  CacheConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host string `validate:"required"`
	Port int    `validate:"min=1,max=65535"`
}

// DataConfig points at the three dataset files.
type DataConfig struct {
	GeoPackage string `validate:"required"`
	Style      string `validate:"required"`
	Statistics string `validate:"required"`
}

type MapConfig struct {
	Tolerance       float64  `validate:"gte=0"`
	CodeColumns     []string `validate:"min=1,dive,required"`
	LayerPreference []string `validate:"dive,required"`
	PopupFields     []render.Field
}

type CacheConfig struct {
	Limit    int           `validate:"gte=0"`
	RedisURL string        `validate:"omitempty,url"`
	RedisTTL time.Duration `validate:"gte=0"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// Default returns the configuration for the standard data/apcac layout.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8086},
		Data:   Files("data/apcac"),
		Map: MapConfig{
			Tolerance:       simplify.DefaultTolerance,
			CodeColumns:     catalog.DefaultCodeColumns,
			LayerPreference: catalog.DefaultLayerPreference,
			PopupFields:     render.DefaultPopupFields,
		},
		Cache: CacheConfig{RedisTTL: time.Hour},
		Log:   LogConfig{Level: "info"},
	}
}

// Files returns the conventional file names inside dir.
func Files(dir string) DataConfig {
	return DataConfig{
		GeoPackage: filepath.Join(dir, "apcac.gpkg"),
		Style:      filepath.Join(dir, "apcac.qml"),
		Statistics: filepath.Join(dir, "apcac.csv"),
	}
}

// Validate checks c against its field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, f := range c.Map.PopupFields {
		if f.Name == "" || f.Alias == "" {
			return fmt.Errorf("invalid configuration: popup field %q needs a name and an alias", f.Name+":"+f.Alias)
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ParseList splits a comma-separated option, dropping blanks. An empty
// string yields nil.
func ParseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParsePopupFields parses "name:Alias" pairs separated by commas, for example
// "area_km2:Área (km²),elev_mean:Elevação média (m)".
func ParsePopupFields(s string) ([]render.Field, error) {
	var fields []render.Field
	for _, item := range ParseList(s) {
		name, alias, ok := strings.Cut(item, ":")
		name, alias = strings.TrimSpace(name), strings.TrimSpace(alias)
		if !ok || name == "" || alias == "" {
			return nil, fmt.Errorf("popup field %q: want name:Alias", item)
		}
		fields = append(fields, render.Field{Name: name, Alias: alias})
	}
	return fields, nil
}

// ParseTolerance parses a simplification tolerance. An empty string yields
// fallback.
func ParseTolerance(s string, fallback float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("tolerance %q: %w", s, err)
	}
	if t < 0 {
		return 0, fmt.Errorf("tolerance %q: must not be negative", s)
	}
	return t, nil
}
