package style

import "strings"

// Legend categories, in display order.
const (
	NaturalHighRisk    = "Natural - Alto Risco"
	NaturalNoRisk      = "Natural - Sem Risco"
	AnthropicHighRisk  = "Antrópica - Alto Risco"
	AnthropicNoRisk    = "Antrópica - Sem Risco"
	naturalSubstring   = "Predominância natural"
	anthropicSubstring = "Predominância antrópica"
	highRiskSubstring  = "alto risco"
)

// Categories lists the four legend categories in display order.
var Categories = []string{NaturalHighRisk, NaturalNoRisk, AnthropicHighRisk, AnthropicNoRisk}

// LegendEntry is one class shown in the legend.
type LegendEntry struct {
	Code       string `json:"code" doc:"APCAC class code"`
	Label      string `json:"label" doc:"Full class label"`
	ShortLabel string `json:"shortLabel" doc:"Label without its predominance prefix"`
	Color      string `json:"color" doc:"Fill color (CSS hex)"`
}

// LegendGroup holds the entries of one category.
type LegendGroup struct {
	Category string        `json:"category" doc:"Legend category"`
	Entries  []LegendEntry `json:"entries" doc:"Classes in this category"`
}

// Legend is the grouped legend. Dropped lists the codes whose label matched
// neither predominance; they are still drawn on the map.
type Legend struct {
	Groups  []LegendGroup `json:"groups" doc:"Non-empty categories in display order"`
	Dropped []string      `json:"dropped,omitempty" doc:"Class codes left out of the legend"`
}

// Category returns the legend category for a class label, or "" when the
// label names neither predominance.
func Category(label string) string {
	risky := strings.Contains(label, highRiskSubstring)
	switch {
	case strings.Contains(label, naturalSubstring):
		if risky {
			return NaturalHighRisk
		}
		return NaturalNoRisk
	case strings.Contains(label, anthropicSubstring):
		if risky {
			return AnthropicHighRisk
		}
		return AnthropicNoRisk
	}
	return ""
}

// BuildLegend groups the styles into the four legend categories, keeping
// descriptor order inside each group and omitting empty groups.
func BuildLegend(m *StyleMap) Legend {
	grouped := make(map[string][]LegendEntry, len(Categories))
	var legend Legend

	for _, s := range m.Entries() {
		cat := Category(s.Label)
		if cat == "" {
			legend.Dropped = append(legend.Dropped, s.Code)
			continue
		}
		grouped[cat] = append(grouped[cat], LegendEntry{
			Code:       s.Code,
			Label:      s.Label,
			ShortLabel: shortLabel(s.Label),
			Color:      s.Color,
		})
	}

	for _, cat := range Categories {
		if entries := grouped[cat]; len(entries) > 0 {
			legend.Groups = append(legend.Groups, LegendGroup{Category: cat, Entries: entries})
		}
	}
	return legend
}

// shortLabel returns the second " - " segment of a label, or the label itself.
func shortLabel(label string) string {
	parts := strings.Split(label, " - ")
	if len(parts) > 1 {
		return parts[1]
	}
	return label
}
