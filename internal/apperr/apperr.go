// Package apperr defines the error kinds the audio pipeline reports.
//
// Recoverable conditions (unvoiced frames, failed separation, failed
// transcription) are NOT errors; they are degraded result variants carried
// in the stage outputs. Anything that leaves a required artifact undefined
// aborts the invocation with one of the kinds below, tagged with the stage
// that originated it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. The values double as API error codes.
type Kind string

const (
	// KindDecode: unreadable or corrupt audio input. Fatal, not retried.
	KindDecode Kind = "DECODE_ERROR"

	// KindConfiguration: missing credentials, unknown voice identity, or an
	// invalid gain of zero. Fatal; carries a remediation hint.
	KindConfiguration Kind = "CONFIGURATION_ERROR"

	// KindSynthesis: upstream voice service returned non-success or timed
	// out. Fatal to this invocation; a fresh invocation is safe to retry.
	KindSynthesis Kind = "SYNTHESIS_ERROR"

	// KindEmptyInput: caller supplied material with no usable content
	// (e.g. a zero-length backing track).
	KindEmptyInput Kind = "EMPTY_INPUT"

	// KindMissingInput: caller supplied no material at all for a required
	// slot. Rejected before any stage runs.
	KindMissingInput Kind = "MISSING_INPUT"
)

// Error is a classified pipeline error. Stage names the pipeline step that
// raised it so callers never see a bare generic failure.
type Error struct {
	Kind   Kind
	Stage  string
	Detail string
	Hint   string // remediation hint, set for configuration errors
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s]: %s", e.Kind, e.Stage, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, stage, detail string) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: detail}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, stage, detail string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: detail, Err: err}
}

// Config creates a configuration error with a remediation hint.
func Config(stage, detail, hint string) *Error {
	return &Error{Kind: KindConfiguration, Stage: stage, Detail: detail, Hint: hint}
}

// KindOf returns the kind of err, or "" when err is not a classified error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
