package analysis

import "time"

// AnalysisRequest is the raw input handed to the pipeline by the surrounding
// application. PRDContent is the only mandatory field.
type AnalysisRequest struct {
	PRDContent          string
	ArchitectureContent string
	RepositoryURL       string
}

// AssumptionSubject identifies which missing input an assumption substitutes for.
type AssumptionSubject string

const (
	SubjectArchitecture    AssumptionSubject = "ARCHITECTURE"
	SubjectRepository      AssumptionSubject = "REPOSITORY"
	SubjectTechnicalDetail AssumptionSubject = "TECHNICAL_DETAIL"
)

// Confidence grades how safe an assumption is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// AssumptionRecord is an explicit, auditable note substituting for a missing
// optional input. Records are append-only and never mutated after creation.
type AssumptionRecord struct {
	Subject    AssumptionSubject `json:"subject"`
	Statement  string            `json:"statement"`
	Confidence Confidence        `json:"confidence"`
}

// NormalizedInput is the validated, bounded input the rest of the pipeline
// consumes. ReceivedAt is fixed here so downstream assembly stays pure.
type NormalizedInput struct {
	PRDContent          string
	ArchitectureContent string
	RepositoryURL       string
	RepositorySummary   string
	ProjectInfo         ProjectInfo
	ReceivedAt          time.Time
}
