package documents

import "time"

// Document kinds accepted by the intake endpoint.
const (
	KindPRD          = "prd"
	KindArchitecture = "architecture"
)

// Document represents an uploaded source document for an impact analysis.
type Document struct {
	ID               string
	Kind             string
	FileName         string
	MimeType         string
	SizeBytes        int64
	StorageProvider  string
	StorageKey       string
	ExtractedTextKey string
	ExtractedAt      *time.Time
	CreatedAt        time.Time
}

// ValidKind reports whether kind names a supported document kind.
func ValidKind(kind string) bool {
	return kind == KindPRD || kind == KindArchitecture
}
