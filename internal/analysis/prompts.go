package analysis

import (
	"fmt"
	"strings"
)

// Section names. The assembler composes the final report in a fixed order;
// these are the sections whose prose is delegated to a generation backend.
const (
	SectionExecutiveSummary = "executive_summary"
	SectionScopeOverview    = "scope_overview"
	SectionImpactAnalysis   = "impact_analysis"
	SectionRiskRegister     = "risk_register"
)

const systemPrompt = `You are a principal impact analyst evaluating a proposed software system.
Write in formal enterprise language. No emojis, no casual tone, no assumptions
without analysis. Answer only with the content requested, no preamble.`

// SectionPrompt is one configuration-owned prompt template. Placeholders
// ({{PRD}}, {{ARCHITECTURE}}, {{REPOSITORY}}, {{PROJECT_INFO}}) are filled
// from the normalized input.
type SectionPrompt struct {
	Section string
	System  string
	User    string
}

// Build renders the user prompt against the normalized input.
func (p SectionPrompt) Build(in NormalizedInput) string {
	arch := in.ArchitectureContent
	if arch == "" {
		arch = "Not provided; a modern 3-tier cloud-native architecture is assumed."
	}
	repo := in.RepositorySummary
	if repo == "" {
		if in.RepositoryURL != "" {
			repo = "Repository: " + in.RepositoryURL + " (not inspected)"
		} else {
			repo = "No repository; greenfield project assumed."
		}
	}
	replacer := strings.NewReplacer(
		"{{PRD}}", in.PRDContent,
		"{{ARCHITECTURE}}", arch,
		"{{REPOSITORY}}", repo,
		"{{PROJECT_INFO}}", formatProjectInfo(in.ProjectInfo),
	)
	return replacer.Replace(p.User)
}

// DefaultSectionPrompts returns the built-in prompt set. Callers may swap in
// their own map; section names must stay stable because the assembler keys
// generated text by them.
func DefaultSectionPrompts() map[string]SectionPrompt {
	return map[string]SectionPrompt{
		SectionExecutiveSummary: {
			Section: SectionExecutiveSummary,
			System:  systemPrompt,
			User: `Write an executive summary (2-4 paragraphs) of the proposed system and the
overall impact of building it.

PRD CONTENT:
{{PRD}}

ARCHITECTURE:
{{ARCHITECTURE}}

{{REPOSITORY}}

{{PROJECT_INFO}}`,
		},
		SectionScopeOverview: {
			Section: SectionScopeOverview,
			System:  systemPrompt,
			User: `Summarize the scope of the PRD below: core business goals, supported user
flows, and platform scope (web/mobile/admin). Use short paragraphs and bullet
lists.

PRD CONTENT:
{{PRD}}

{{PROJECT_INFO}}`,
		},
		SectionImpactAnalysis: {
			Section: SectionImpactAnalysis,
			System:  systemPrompt,
			User: `For each impact area below, describe the impact of building the proposed
system and how to mitigate it. Respond with ONLY a JSON array, one object per
area, exactly these fields:
[{"area":"TECHNICAL","description":"...","severity":"H|M|L","likelihood":"H|M|L","priority":1-10,"mitigation":"..."}]
Areas, in order: TECHNICAL, BUSINESS, DEVELOPMENT, PERFORMANCE, SECURITY.

PRD CONTENT:
{{PRD}}

ARCHITECTURE:
{{ARCHITECTURE}}

{{REPOSITORY}}`,
		},
		SectionRiskRegister: {
			Section: SectionRiskRegister,
			System:  systemPrompt,
			User: `List the principal delivery and operational risks of the proposed system.
Respond with ONLY a JSON array of 3 to 8 objects, exactly these fields:
[{"description":"...","impact":"H|M|L","probability":"H|M|L","mitigation":"...","owner":"...","timeline":"..."}]
Do not compute scores; they are derived downstream.

PRD CONTENT:
{{PRD}}

ARCHITECTURE:
{{ARCHITECTURE}}

{{REPOSITORY}}

{{PROJECT_INFO}}`,
		},
	}
}

func formatProjectInfo(info ProjectInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PROJECT SCALE: %s\n", info.Scale)
	fmt.Fprintf(&b, "COMPLEXITY: %s\n", info.Complexity)
	fmt.Fprintf(&b, "FEATURES COUNT: %d\n", len(info.Features))
	if len(info.Integrations) > 0 {
		fmt.Fprintf(&b, "INTEGRATIONS: %s\n", strings.Join(info.Integrations, ", "))
	}
	if len(info.Compliance) > 0 {
		fmt.Fprintf(&b, "COMPLIANCE: %s\n", strings.Join(info.Compliance, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
