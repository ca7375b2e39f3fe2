package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-apcac/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/layers>; rel="layers"`,
		`</api/v1/legend>; rel="legend"`,
		`</api/v1/charts>; rel="charts"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/layers>; rel="layers"`,
	},
	"/api/v1/layers": {
		`</api/v1/style>; rel="style"`,
		`</api/v1/legend>; rel="legend"`,
		`</api/v1/charts>; rel="charts"`,
	},
	"/api/v1/layers/{name}/map": {
		`</api/v1/layers>; rel="collection"`,
		`</api/v1/legend>; rel="legend"`,
	},
	"/api/v1/layers/{name}/summary": {
		`</api/v1/layers>; rel="collection"`,
	},
	"/api/v1/style": {
		`</api/v1/legend>; rel="legend"`,
	},
	"/api/v1/legend": {
		`</api/v1/style>; rel="style"`,
		`</api/v1/layers>; rel="layers"`,
	},
	"/api/v1/statistics": {
		`</api/v1/charts>; rel="charts"`,
	},
	"/api/v1/charts": {
		`</api/v1/statistics>; rel="statistics"`,
		`</api/v1/legend>; rel="legend"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
// Bodies implementing humastar.Actor add their state-dependent actions.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if actor, ok := v.(humastar.Actor); ok {
			for _, a := range actor.Actions() {
				ctx.AppendHeader("Link", a.LinkHeader())
			}
		}

		return v, nil
	}
}
