package style

import (
	"fmt"
	"strconv"
	"strings"
)

// ColorFromRGBA converts a QGIS "r,g,b[,a]" color into "#rrggbb".
// Alpha is dropped. Anything that is not three or four integer channels in
// 0-255 yields DefaultColor.
func ColorFromRGBA(value string) string {
	parts := strings.Split(value, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return DefaultColor
	}

	var rgb [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return DefaultColor
		}
		if i < 3 {
			rgb[i] = n
		}
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}
