package analysis

import (
	"fmt"
	"strings"
	"time"
)

// ImpactArea is one of the five fixed impact table areas.
type ImpactArea string

const (
	AreaTechnical   ImpactArea = "TECHNICAL"
	AreaBusiness    ImpactArea = "BUSINESS"
	AreaDevelopment ImpactArea = "DEVELOPMENT"
	AreaPerformance ImpactArea = "PERFORMANCE"
	AreaSecurity    ImpactArea = "SECURITY"
)

// ImpactAreas is the fixed row order of the impact analysis table.
var ImpactAreas = []ImpactArea{AreaTechnical, AreaBusiness, AreaDevelopment, AreaPerformance, AreaSecurity}

// ImpactTableRow is one row of the impact analysis table.
type ImpactTableRow struct {
	Area        ImpactArea `json:"area"`
	Description string     `json:"description"`
	Severity    Level      `json:"severity"`
	Likelihood  Level      `json:"likelihood"`
	Priority    int        `json:"priority"`
	Mitigation  string     `json:"mitigation"`
}

// Recommendation is the final go/no-go verdict.
type Recommendation string

const (
	RecommendationGo            Recommendation = "GO"
	RecommendationNoGo          Recommendation = "NO_GO"
	RecommendationConditionalGo Recommendation = "CONDITIONAL_GO"
)

// Section is one named block of report prose, in final order.
type Section struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// Report is the assembled impact analysis. It is constructed once per
// invocation, immutable after construction, and owned by that invocation
// until handed to the Artifact Registrar.
type Report struct {
	Title          string             `json:"title"`
	GeneratedAt    time.Time          `json:"generated_at"`
	BackendUsed    Backend            `json:"backend_used"`
	Sections       []Section          `json:"sections"`
	Assumptions    []AssumptionRecord `json:"assumptions"`
	ImpactRows     []ImpactTableRow   `json:"impact_rows"`
	Risks          []RiskItem         `json:"risks"`
	DroppedRisks   int                `json:"dropped_risks"`
	Recommendation Recommendation     `json:"recommendation"`
	Degraded       bool               `json:"degraded"`
}

// Render serializes the report as a markdown document with a fixed heading
// hierarchy and table column order. Identical reports render byte-identically.
func (r Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Backend: %s\n", r.BackendUsed)
	fmt.Fprintf(&b, "- Recommendation: %s\n", r.Recommendation)
	if r.Degraded {
		b.WriteString("- Degraded: one or more sections could not be generated\n")
	}
	b.WriteString("\n")

	for _, section := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", section.Name, strings.TrimSpace(section.Body))
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderAssumptions(assumptions []AssumptionRecord) string {
	if len(assumptions) == 0 {
		return "No assumptions were required; all inputs were provided."
	}
	var b strings.Builder
	for _, a := range assumptions {
		fmt.Fprintf(&b, "- **%s** (%s confidence): %s\n", a.Subject, a.Confidence, a.Statement)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderImpactTable(rows []ImpactTableRow) string {
	var b strings.Builder
	b.WriteString("| Area | Description | Severity | Likelihood | Priority | Mitigation |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s |\n",
			row.Area, tableCell(row.Description), row.Severity, row.Likelihood, row.Priority, tableCell(row.Mitigation))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRiskMatrix(risks []RiskItem, dropped int) string {
	var b strings.Builder
	b.WriteString("| ID | Description | Impact | Probability | Score | Mitigation | Owner | Timeline |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, risk := range risks {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s | %s | %s |\n",
			risk.ID, tableCell(risk.Description), risk.Impact, risk.Probability, risk.Score,
			tableCell(risk.Mitigation), tableCell(risk.Owner), tableCell(risk.Timeline))
	}
	if dropped > 0 {
		fmt.Fprintf(&b, "\n%d risk entr%s dropped due to malformed impact or probability values.\n",
			dropped, pluralY(dropped))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMitigations(risks []RiskItem) string {
	var qualifying []RiskItem
	for _, risk := range risks {
		if risk.RequiresMitigation() {
			qualifying = append(qualifying, risk)
		}
	}
	if len(qualifying) == 0 {
		return "No risks met the mandatory mitigation threshold."
	}
	var b strings.Builder
	for _, risk := range qualifying {
		fmt.Fprintf(&b, "### %s: %s\n\n", risk.ID, risk.Description)
		fmt.Fprintf(&b, "Score %d (impact %s × probability %s) requires a committed mitigation plan.\n\n",
			risk.Score, risk.Impact, risk.Probability)
		fmt.Fprintf(&b, "- Mitigation: %s\n", orUnspecified(risk.Mitigation))
		fmt.Fprintf(&b, "- Owner: %s\n", orUnspecified(risk.Owner))
		fmt.Fprintf(&b, "- Timeline: %s\n\n", orUnspecified(risk.Timeline))
	}
	return strings.TrimRight(b.String(), "\n")
}

func tableCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}

func orUnspecified(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unspecified"
	}
	return value
}

func pluralY(n int) string {
	if n == 1 {
		return "y was"
	}
	return "ies were"
}
