// Package reconerr implements the error-kind taxonomy and the Job terminal
// status as a tagged variant, replacing the dynamic status strings the
// source system used (spec §7, §9 "Dynamic status strings").
package reconerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is an error kind, ordered by severity as in spec §7.
type Kind int

const (
	// KindInvalidInput: no readable slices, or no series survives filtering.
	KindInvalidInput Kind = iota
	// KindInconsistentSeries: the primary series fails geometry validation.
	KindInconsistentSeries
	// KindDegenerateGeometry: assembled volume has a dimension <2, mask is
	// empty, or marching cubes produced no vertices.
	KindDegenerateGeometry
	// KindQualityWarning: coverage out of band, r>3, CV>10%, non-monotone
	// positions >10%. Never fatal.
	KindQualityWarning
	// KindStageRecoverable: N4/Otsu/smoothing failed, decimation
	// unavailable, external compressor failed/timed out. Never fatal.
	KindStageRecoverable
)

// String names the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindInconsistentSeries:
		return "InconsistentSeries"
	case KindDegenerateGeometry:
		return "DegenerateGeometry"
	case KindQualityWarning:
		return "QualityWarning"
	case KindStageRecoverable:
		return "StageRecoverable"
	default:
		return "Unknown"
	}
}

// Fatal reports whether a Kind fails the Job (spec §7 policy: only contract
// violations and empty-output conditions do).
func (k Kind) Fatal() bool {
	switch k {
	case KindInvalidInput, KindInconsistentSeries, KindDegenerateGeometry:
		return true
	default:
		return false
	}
}

// Error is a pipeline error carrying a Kind, used both for fatal returns and
// for logged-and-continued warnings.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error {
	return errors.Cause(e.cause)
}

// New builds an Error of kind k for the given stage.
func New(k Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: k, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of kind k, preserving cause via pkg/errors so the
// original stack trace survives across stage boundaries.
func Wrap(cause error, k Kind, stage, format string, args ...any) *Error {
	return &Error{
		Kind:    k,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.Wrap(cause, stage),
	}
}

// StatusKind names a Job's lifecycle state.
type StatusKind int

const (
	StatusPending StatusKind = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s StatusKind) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the Job's terminal record: a tagged variant of
// Pending/Processing/Completed/Failed{kind,message} (spec §7, §9).
type Status struct {
	Kind    StatusKind
	Error   *Error // non-nil only when Kind == StatusFailed
	OutputSTL string
	OutputGLB string
}

// Pending returns the initial status.
func Pending() Status { return Status{Kind: StatusPending} }

// Processing returns the in-flight status.
func Processing() Status { return Status{Kind: StatusProcessing} }

// Completed returns the terminal success status with its two output keys.
func Completed(stlKey, glbKey string) Status {
	return Status{Kind: StatusCompleted, OutputSTL: stlKey, OutputGLB: glbKey}
}

// Failed returns the terminal failure status carrying the first fatal error.
func Failed(err *Error) Status {
	return Status{Kind: StatusFailed, Error: err}
}
