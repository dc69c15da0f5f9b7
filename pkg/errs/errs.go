// Package errs defines the typed failures raised by the forecasting core.
//
// Every failure carries a Kind so that callers (the HTTP layer, the CLI) can
// decide how to surface it without parsing messages. Errors are raised at the
// point of detection and propagated unchanged; wrapping with fmt.Errorf("%w")
// keeps the kind reachable through errors.As and errors.Is.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation           Kind = "VALIDATION_ERROR"
	KindFrequencyMismatch    Kind = "FREQUENCY_MISMATCH"
	KindUnresolvableGeo      Kind = "UNRESOLVABLE_GEO"
	KindModelFit             Kind = "MODEL_FIT_ERROR"
	KindUnsupportedFrequency Kind = "UNSUPPORTED_FREQUENCY"
	KindNotFound             Kind = "NOT_FOUND"
	KindUnauthorized         Kind = "UNAUTHORIZED"
	KindInternal             Kind = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrFrequencyMismatch    = &Error{Kind: KindFrequencyMismatch}
	ErrUnresolvableGeo      = &Error{Kind: KindUnresolvableGeo}
	ErrModelFit             = &Error{Kind: KindModelFit}
	ErrUnsupportedFrequency = &Error{Kind: KindUnsupportedFrequency}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized}
)

// Error is a structured failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Model names the forecast engine for KindModelFit.
	Model string
	// Frequencies lists the conflicting tokens for KindFrequencyMismatch.
	Frequencies []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation reports malformed or missing request input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// FrequencyMismatch reports series whose inferred frequencies disagree.
// The distinct tokens are recorded sorted.
func FrequencyMismatch(frequencies []string) *Error {
	seen := make(map[string]bool, len(frequencies))
	distinct := make([]string, 0, len(frequencies))
	for _, f := range frequencies {
		if !seen[f] {
			seen[f] = true
			distinct = append(distinct, f)
		}
	}
	sort.Strings(distinct)
	return &Error{
		Kind:        KindFrequencyMismatch,
		Message:     "frequencies do not match: " + strings.Join(distinct, ", "),
		Frequencies: distinct,
	}
}

// UnresolvableGeo reports a geo column without a single canonical code.
func UnresolvableGeo(column string) *Error {
	return &Error{
		Kind:    KindUnresolvableGeo,
		Message: fmt.Sprintf("column %q did not contain resolvable country codes", column),
	}
}

// ModelFit reports a numerical failure inside a forecast engine.
func ModelFit(model string, cause error) *Error {
	return &Error{
		Kind:    KindModelFit,
		Message: fmt.Sprintf("%s fit failed", model),
		Cause:   cause,
		Model:   model,
	}
}

// UnsupportedFrequency reports a frequency token without a fixed day step.
func UnsupportedFrequency(token string) *Error {
	return &Error{
		Kind:    KindUnsupportedFrequency,
		Message: fmt.Sprintf("frequency %q has no supported day step", token),
	}
}

// NotFound reports a missing resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// Unauthorized reports a missing or invalid session.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
