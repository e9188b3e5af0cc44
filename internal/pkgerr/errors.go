// Package pkgerr defines the closed set of installation failure kinds and
// the structured records the presentation layer and history store receive.
package pkgerr

import (
	"errors"
)

// Error is a classified installation failure
type Error struct {
	Detail Detail
	Err    error // underlying cause, may be nil
}

// New creates an Error for the given detail
func New(d Detail) *Error {
	return &Error{Detail: d}
}

// Wrap creates an Error for the given detail that keeps cause in its chain
func Wrap(d Detail, cause error) *Error {
	return &Error{Detail: d, Err: cause}
}

// Error implements error
func (e *Error) Error() string {
	msg := e.Detail.describe()
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the failure kind, derived from the detail
func (e *Error) Kind() Kind {
	return e.Detail.Kind()
}

// Retryable reports whether the kind is transient
func (e *Error) Retryable() bool {
	return e.Kind().Retryable()
}

// Record converts the error into its serializable form
func (e *Error) Record() Record {
	k := e.Kind()
	return Record{
		Kind:        k,
		Message:     e.Error(),
		Context:     e.Detail.Context(),
		Retryable:   k.Retryable(),
		Remediation: k.Remediation(),
	}
}

// Record is the serializable error record handed to callers and the history store
type Record struct {
	Kind        Kind           `json:"kind"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context,omitempty"`
	Retryable   bool           `json:"retryable"`
	Remediation Remediation    `json:"remediation"`
}

// As extracts the classified error from err's chain
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the kind of err. Unclassified errors count as
// KindInstallationFailed, nil returns KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if pe, ok := As(err); ok {
		return pe.Kind()
	}
	return KindInstallationFailed
}

// Classify returns err as an *Error, wrapping unclassified errors as InstallationFailed
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if pe, ok := As(err); ok {
		return pe
	}
	return Wrap(InstallationFailed{ExitCode: -1, Output: err.Error()}, err)
}

// RecordOf returns the record for err, or nil when err is nil
func RecordOf(err error) *Record {
	pe := Classify(err)
	if pe == nil {
		return nil
	}
	rec := pe.Record()
	return &rec
}

// Is reports whether err carries the given kind
func Is(err error, k Kind) bool {
	pe, ok := As(err)
	return ok && pe.Kind() == k
}
