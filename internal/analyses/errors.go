package analyses

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrReportNotReady = errors.New("report not ready")
	ErrNotRetryable   = errors.New("analysis is not awaiting registration retry")
)

const (
	ErrorCodeValidation   = "VALIDATION_ERROR"
	ErrorCodeLLMTimeout   = "LLM_TIMEOUT"
	ErrorCodeStorage      = "STORAGE_ERROR"
	ErrorCodeRegistration = "REGISTRATION_ERROR"
	ErrorCodeInternal     = "INTERNAL_ERROR"
)
