package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// TransientError marks a generation failure worth retrying: rate limits,
// timeouts, transport drops, provider 5xx.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// FatalError marks a generation failure that retries cannot fix, such as a
// malformed prompt or an over-long context. Callers should go straight to a
// fallback provider.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as non-retryable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsTransient reports whether err looks retryable. Explicitly fatal errors
// never are; explicitly transient ones always are. Anything unclassified is
// judged by the same transport heuristics the providers themselves use.
func IsTransient(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "status 429") {
		return true
	}
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}

// StatusError converts a provider HTTP status into the right taxonomy bucket.
func StatusError(provider string, status int, body string) error {
	err := fmt.Errorf("%s: http status %d: %s", provider, status, body)
	switch {
	case status == 429 || status >= 500:
		return Transient(err)
	case status >= 400:
		return Fatal(err)
	default:
		return err
	}
}
