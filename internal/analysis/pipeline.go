package analysis

import (
	"context"

	"impact-backend/internal/shared/telemetry"
)

// Result is everything an invocation produces. When Run fails with a
// RegistrationError the Report and Rendered fields are still populated so the
// caller can retry registration without regenerating anything.
type Result struct {
	Report       Report
	Rendered     []byte
	ReportID     string
	Assumptions  []AssumptionRecord
	Degraded     bool
	DroppedRisks []*InvalidRiskInputError
	Outcome      GenerationOutcome
}

// Pipeline wires the full invocation: normalize → generate sections → score
// risks → assemble → register. The guiding contract is that a report is
// always producible from any input with non-empty PRD content; only input
// validation and registration failures propagate.
type Pipeline struct {
	Normalizer *Normalizer
	Selector   *Selector
	Assembler  Assembler
	Registrar  Registrar
	Prompts    map[string]SectionPrompt
}

// Run executes one analysis invocation. It is cancellable up to the section
// join point; on cancellation nothing is persisted.
func (p *Pipeline) Run(ctx context.Context, req AnalysisRequest) (Result, error) {
	prompts := p.Prompts
	if prompts == nil {
		prompts = DefaultSectionPrompts()
	}

	in, assumptions, err := p.Normalizer.Normalize(ctx, req)
	if err != nil {
		return Result{}, err
	}

	outcome, err := p.Selector.Generate(ctx, in, prompts)
	if err != nil {
		return Result{}, err
	}

	risks, dropped := ScoreRisks(ParseRiskRegister(outcome.Sections[SectionRiskRegister]))
	for _, drop := range dropped {
		telemetry.Info("analysis.risk_dropped", map[string]any{
			"index":  drop.Index,
			"field":  drop.Field,
			"value":  drop.Value,
			"reason": drop.Reason,
		})
	}

	report := p.Assembler.Assemble(in, outcome, assumptions, risks, len(dropped))
	result := Result{
		Report:       report,
		Rendered:     []byte(report.Render()),
		Assumptions:  assumptions,
		Degraded:     report.Degraded,
		DroppedRisks: dropped,
		Outcome:      outcome,
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	id, err := p.Registrar.Register(ctx, result.Rendered)
	if err != nil {
		return result, &RegistrationError{Err: err}
	}
	result.ReportID = id
	return result, nil
}
