package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-apcac/internal/catalog"
)

// PopupContent renders the popup text of f: one "<Alias>: <value>" line for
// the class code followed by one per field. Missing values render empty.
func PopupContent(f catalog.Feature, fields []Field) string {
	var b strings.Builder
	b.WriteString(CodeAlias + ": " + f.ClassCode)
	for _, field := range fields {
		b.WriteString("\n" + field.Alias + ": " + FormatValue(f.Properties[field.Name]))
	}
	return b.String()
}

// ParsePopupCode recovers the class code from popup content as reported by
// the map, that is the value of the first line labelled alias. It reports
// false when no such line exists or the value is empty.
func ParsePopupCode(content, alias string) (string, bool) {
	prefix := alias + ":"
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			code := strings.TrimSpace(rest)
			return code, code != ""
		}
	}
	return "", false
}

// FormatValue formats an attribute for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
