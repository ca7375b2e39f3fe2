// Package style extracts APCAC class styles from a QGIS symbology descriptor
// and groups them into the dashboard legend.
package style

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
)

// DefaultColor is used whenever a class has no resolvable symbol color.
const DefaultColor = "#808080"

// ClassStyle is the style of one APCAC class code.
type ClassStyle struct {
	Code      string `json:"code" yaml:"code" doc:"APCAC class code" example:"IICN"`
	Label     string `json:"label" yaml:"label" doc:"Human-readable class description"`
	SymbolRef string `json:"symbol" yaml:"symbol" doc:"QGIS symbol identifier" example:"0"`
	Color     string `json:"color" yaml:"color" doc:"Fill color (CSS hex)" example:"#800000"`
}

// StyleMap maps class codes to their styles. It remembers the order in
// which codes first appeared in the descriptor. A StyleMap is not modified
// after parsing and may be shared between goroutines.
type StyleMap struct {
	order  []string
	byCode map[string]ClassStyle
}

// NewStyleMap builds a StyleMap from entries. A repeated code keeps its
// first position and takes the values of its last occurrence.
func NewStyleMap(entries ...ClassStyle) *StyleMap {
	m := &StyleMap{byCode: make(map[string]ClassStyle, len(entries))}
	for _, e := range entries {
		m.put(e)
	}
	return m
}

func (m *StyleMap) put(e ClassStyle) {
	if _, ok := m.byCode[e.Code]; !ok {
		m.order = append(m.order, e.Code)
	}
	m.byCode[e.Code] = e
}

// Len returns the number of classes. A nil map is empty.
func (m *StyleMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Lookup returns the style for code.
func (m *StyleMap) Lookup(code string) (ClassStyle, bool) {
	if m == nil {
		return ClassStyle{}, false
	}
	s, ok := m.byCode[code]
	return s, ok
}

// Color returns the fill color for code, or DefaultColor on a miss.
func (m *StyleMap) Color(code string) string {
	if s, ok := m.Lookup(code); ok && s.Color != "" {
		return s.Color
	}
	return DefaultColor
}

// Entries returns the styles in descriptor order.
func (m *StyleMap) Entries() []ClassStyle {
	if m == nil {
		return nil
	}
	out := make([]ClassStyle, 0, len(m.order))
	for _, code := range m.order {
		out = append(out, m.byCode[code])
	}
	return out
}

// Fingerprint returns a content hash of the map, independent of order.
// Two maps with the same entries share a fingerprint.
func (m *StyleMap) Fingerprint() string {
	entries := m.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Code)
		b.WriteByte(0)
		b.WriteString(e.Label)
		b.WriteByte(0)
		b.WriteString(e.Color)
		b.WriteByte(0x1e)
	}
	h := xxh3.HashString128(b.String())
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}
