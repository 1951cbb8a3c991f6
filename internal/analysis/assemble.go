package analysis

import (
	"fmt"
	"strings"
)

// DefaultNoGoRiskRatio is the fraction of risks scoring at or above the
// mitigation threshold beyond which the recommendation becomes NO_GO. The
// exact threshold is a policy knob, not a hard fact; override it via config.
const DefaultNoGoRiskRatio = 0.4

// Fixed section headings, in assembly order.
const (
	headingExecutiveSummary = "Executive Summary"
	headingAssumptions      = "Assumptions & Constraints"
	headingScopeOverview    = "PRD Scope Overview"
	headingImpactAnalysis   = "Impact Analysis"
	headingRiskAssessment   = "Risk Assessment"
	headingMitigations      = "Mitigation Strategies"
	headingRecommendation   = "Final Recommendation"
)

// Assembler merges generated prose, the assumption ledger and the
// deterministic tables into a Report. Assembly is a pure function of its
// inputs: identical inputs yield byte-identical rendered reports, and it
// never fails. Placeholder sections assemble like any other, they just mark
// the report degraded.
type Assembler struct {
	NoGoRiskRatio float64
}

// Assemble builds the report. droppedRisks is the count of malformed risk
// entries the scoring engine rejected, surfaced in the risk matrix section.
func (a Assembler) Assemble(in NormalizedInput, outcome GenerationOutcome, assumptions []AssumptionRecord, risks []RiskItem, droppedRisks int) Report {
	impactRows := ParseImpactRows(outcome.Sections[SectionImpactAnalysis])
	recommendation := a.Recommend(risks)

	report := Report{
		Title:          "Impact Analysis Report",
		GeneratedAt:    in.ReceivedAt,
		BackendUsed:    outcome.BackendUsed,
		Assumptions:    assumptions,
		ImpactRows:     impactRows,
		Risks:          risks,
		DroppedRisks:   droppedRisks,
		Recommendation: recommendation,
	}

	report.Sections = []Section{
		{Name: headingExecutiveSummary, Body: sectionBody(outcome, SectionExecutiveSummary)},
		{Name: headingAssumptions, Body: renderAssumptions(assumptions)},
		{Name: headingScopeOverview, Body: sectionBody(outcome, SectionScopeOverview)},
		{Name: headingImpactAnalysis, Body: renderImpactTable(impactRows)},
		{Name: headingRiskAssessment, Body: renderRiskMatrix(risks, droppedRisks)},
		{Name: headingMitigations, Body: renderMitigations(risks)},
		{Name: headingRecommendation, Body: a.renderRecommendation(recommendation, risks)},
	}
	// The impact and risk bodies are rebuilt from deterministic defaults, so
	// a placeholder in the raw generation outcome must mark the report
	// degraded even though the assembled table reads normally.
	for _, body := range outcome.Sections {
		if body == Placeholder {
			report.Degraded = true
		}
	}
	for _, section := range report.Sections {
		if section.Body == Placeholder {
			report.Degraded = true
		}
	}
	return report
}

// Recommend derives the final verdict locally, never via a generation
// backend, so it is reproducible and testable independent of prose quality.
func (a Assembler) Recommend(risks []RiskItem) Recommendation {
	if len(risks) == 0 {
		return RecommendationGo
	}
	threshold := a.NoGoRiskRatio
	if threshold <= 0 {
		threshold = DefaultNoGoRiskRatio
	}

	critical := 0
	for _, risk := range risks {
		if risk.RequiresMitigation() {
			critical++
		}
	}
	switch {
	case critical == 0:
		return RecommendationGo
	case float64(critical)/float64(len(risks)) > threshold:
		return RecommendationNoGo
	default:
		return RecommendationConditionalGo
	}
}

func (a Assembler) renderRecommendation(rec Recommendation, risks []RiskItem) string {
	critical := 0
	for _, risk := range risks {
		if risk.RequiresMitigation() {
			critical++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", rec)
	switch rec {
	case RecommendationNoGo:
		fmt.Fprintf(&b, "%d of %d risks score at or above %d. The risk profile must be reduced before this initiative proceeds.",
			critical, len(risks), MitigationThreshold)
	case RecommendationConditionalGo:
		fmt.Fprintf(&b, "%d of %d risks score at or above %d. Proceed only with the mitigation strategies above committed and owned.",
			critical, len(risks), MitigationThreshold)
	default:
		b.WriteString("No risk meets the mandatory mitigation threshold. Proceed with standard delivery controls.")
	}
	return b.String()
}

func sectionBody(outcome GenerationOutcome, name string) string {
	text := strings.TrimSpace(outcome.Sections[name])
	if text == "" {
		return Placeholder
	}
	return text
}
