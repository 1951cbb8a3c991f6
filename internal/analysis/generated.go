package analysis

import (
	"encoding/json"
	"strings"
)

// ParseRiskRegister decodes the generated risk register section. The backends
// are asked for a bare JSON array but occasionally wrap it in markdown fences
// or prose; extractJSONArray tolerates that. When nothing usable can be
// decoded (including the placeholder case) the deterministic default register
// is returned so the pipeline stays total.
func ParseRiskRegister(text string) []RiskInput {
	raw := extractJSONArray(text)
	if raw == "" {
		return DefaultRiskRegister()
	}
	var inputs []RiskInput
	if err := json.Unmarshal([]byte(raw), &inputs); err != nil || len(inputs) == 0 {
		return DefaultRiskRegister()
	}
	return inputs
}

// DefaultRiskRegister is the assumption-based risk set used when no register
// could be generated.
func DefaultRiskRegister() []RiskInput {
	return []RiskInput{
		{
			Description: "Requirements in the PRD are incomplete or ambiguous, causing rework",
			Impact:      "M",
			Probability: "M",
			Mitigation:  "Schedule requirement review checkpoints with stakeholders",
			Owner:       "Product Lead",
			Timeline:    "First two sprints",
		},
		{
			Description: "Assumed architecture diverges from the real deployment environment",
			Impact:      "M",
			Probability: "L",
			Mitigation:  "Validate the architecture assumption before implementation starts",
			Owner:       "Tech Lead",
			Timeline:    "Before sprint 1",
		},
	}
}

type generatedImpactRow struct {
	Area        string `json:"area"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Likelihood  string `json:"likelihood"`
	Priority    int    `json:"priority"`
	Mitigation  string `json:"mitigation"`
}

// ParseImpactRows decodes the generated impact analysis section into exactly
// one row per area, in the fixed area order. Rows the backend omitted or
// malformed are filled with deterministic defaults; priorities are clamped to
// 1..10 and severity/likelihood normalized to H/M/L.
func ParseImpactRows(text string) []ImpactTableRow {
	byArea := make(map[ImpactArea]ImpactTableRow, len(ImpactAreas))
	if raw := extractJSONArray(text); raw != "" {
		var rows []generatedImpactRow
		if err := json.Unmarshal([]byte(raw), &rows); err == nil {
			for _, row := range rows {
				area := ImpactArea(strings.ToUpper(strings.TrimSpace(row.Area)))
				if !validArea(area) {
					continue
				}
				severity, serr := parseLevel(0, "severity", row.Severity)
				likelihood, lerr := parseLevel(0, "likelihood", row.Likelihood)
				if serr != nil || lerr != nil || strings.TrimSpace(row.Description) == "" {
					continue
				}
				byArea[area] = ImpactTableRow{
					Area:        area,
					Description: strings.TrimSpace(row.Description),
					Severity:    severity,
					Likelihood:  likelihood,
					Priority:    clampPriority(row.Priority),
					Mitigation:  strings.TrimSpace(row.Mitigation),
				}
			}
		}
	}

	out := make([]ImpactTableRow, 0, len(ImpactAreas))
	for _, area := range ImpactAreas {
		if row, ok := byArea[area]; ok {
			out = append(out, row)
			continue
		}
		out = append(out, defaultImpactRow(area))
	}
	return out
}

func defaultImpactRow(area ImpactArea) ImpactTableRow {
	return ImpactTableRow{
		Area:        area,
		Description: "Impact could not be assessed from the available inputs; assumption-based estimate applied",
		Severity:    LevelMedium,
		Likelihood:  LevelMedium,
		Priority:    5,
		Mitigation:  "Revisit once the missing inputs are available",
	}
}

func validArea(area ImpactArea) bool {
	for _, a := range ImpactAreas {
		if a == area {
			return true
		}
	}
	return false
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// extractJSONArray pulls the first top-level JSON array out of text, which
// may carry markdown fences or surrounding prose.
func extractJSONArray(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || text == Placeholder {
		return ""
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
