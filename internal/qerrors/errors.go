// Package qerrors classifies provider and tool failures so the router
// and orchestrator can decide between retry, rotation, fallback, and
// surfacing a terminal error.
package qerrors

import (
	"errors"
	"fmt"
	"strings"
)

// TransientError wraps a failure that is expected to succeed on retry
// against a different credential or provider.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that will not recover by retrying.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient marks an error as retriable.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// Permanent marks an error as non-retriable.
func Permanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Op: op, Err: err}
}

// IsTransient reports whether err is marked transient anywhere in its
// chain.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is marked permanent anywhere in its
// chain.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// IsRateLimit reports whether err looks like a provider rate-limit or
// quota rejection. Providers differ in how they surface 429s, so this
// matches both the status code and the usual message text.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") {
		return true
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") {
		return true
	}
	return strings.Contains(msg, "quota")
}

// HTTPStatusCode extracts a status code embedded in a provider error
// message, returning 0 when none is found.
func HTTPStatusCode(err error) int {
	if err == nil {
		return 0
	}
	msg := err.Error()
	for _, code := range []int{429, 500, 502, 503, 504, 401, 403, 404, 400} {
		if strings.Contains(msg, fmt.Sprintf("%d", code)) {
			return code
		}
	}
	return 0
}

// FormatForLLM renders an error as short text the model can act on.
func FormatForLLM(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case IsRateLimit(err):
		return "The model provider is rate limited. The request will be retried with different credentials."
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return fmt.Sprintf("The operation timed out: %s", msg)
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "401"):
		return "Authentication with the model provider failed."
	default:
		return msg
	}
}
