package analysis

import "context"

// Registrar is the external storage collaborator for assembled reports. The
// persistence mechanism, medium and TTL are owned by the implementation; the
// pipeline only requires that Fetch returns the exact bytes previously
// registered under the identifier, or ErrReportNotFound.
type Registrar interface {
	// Register persists the serialized report and returns a stable
	// identifier for later retrieval. Failures are wrapped in
	// RegistrationError; the caller may retry with the same bytes.
	Register(ctx context.Context, report []byte) (string, error)
	// Fetch returns the serialized report registered under id.
	Fetch(ctx context.Context, id string) ([]byte, error)
}
