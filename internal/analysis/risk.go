package analysis

import (
	"fmt"
	"strings"
)

// Level is a three-point severity/likelihood grade.
type Level string

const (
	LevelHigh   Level = "H"
	LevelMedium Level = "M"
	LevelLow    Level = "L"
)

// Weight maps a level onto its score weight: H=5, M=3, L=1.
func Weight(l Level) int {
	switch l {
	case LevelHigh:
		return 5
	case LevelMedium:
		return 3
	default:
		return 1
	}
}

// MitigationThreshold is the score at or above which a risk requires an
// elaborated mitigation block in the assembled report.
const MitigationThreshold = 15

// RiskInput is one unscored risk entry, typically parsed from generated text.
type RiskInput struct {
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Probability string `json:"probability"`
	Mitigation  string `json:"mitigation"`
	Owner       string `json:"owner"`
	Timeline    string `json:"timeline"`
}

// RiskItem is a scored risk. Score is always recomputed here and never
// hand-set, so it is reproducible regardless of which backend wrote the prose.
type RiskItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Impact      Level  `json:"impact"`
	Probability Level  `json:"probability"`
	Score       int    `json:"score"`
	Mitigation  string `json:"mitigation"`
	Owner       string `json:"owner"`
	Timeline    string `json:"timeline"`
}

// RequiresMitigation reports whether the risk qualifies for a mandatory
// elaborated mitigation block.
func (r RiskItem) RequiresMitigation() bool {
	return r.Score >= MitigationThreshold
}

// ScoreRisks assigns sequential IDs ("R-001", …) in input order and computes
// score = weight(impact) × weight(probability) for each entry. Entries with a
// malformed impact or probability are dropped individually; the drops are
// returned so the caller can report them, and the batch always succeeds.
func ScoreRisks(inputs []RiskInput) ([]RiskItem, []*InvalidRiskInputError) {
	items := make([]RiskItem, 0, len(inputs))
	var dropped []*InvalidRiskInputError

	for i, in := range inputs {
		impact, err := parseLevel(i, "impact", in.Impact)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		probability, err := parseLevel(i, "probability", in.Probability)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		items = append(items, RiskItem{
			ID:          fmt.Sprintf("R-%03d", len(items)+1),
			Description: strings.TrimSpace(in.Description),
			Impact:      impact,
			Probability: probability,
			Score:       Weight(impact) * Weight(probability),
			Mitigation:  strings.TrimSpace(in.Mitigation),
			Owner:       strings.TrimSpace(in.Owner),
			Timeline:    strings.TrimSpace(in.Timeline),
		})
	}
	return items, dropped
}

// parseLevel accepts the single-letter grades plus their spelled-out forms,
// which generation backends occasionally emit despite the prompt.
func parseLevel(index int, field, raw string) (Level, *InvalidRiskInputError) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "H", "HIGH":
		return LevelHigh, nil
	case "M", "MEDIUM", "MED":
		return LevelMedium, nil
	case "L", "LOW":
		return LevelLow, nil
	default:
		return "", &InvalidRiskInputError{
			Index:  index,
			Field:  field,
			Value:  raw,
			Reason: "must be one of H, M, L",
		}
	}
}
