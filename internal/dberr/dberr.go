// Package dberr implements the engine's error taxonomy: every operation
// resolves into exactly one Kind, carried by an Error that can be
// chained and aggregated into an end-of-run report.
package dberr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the engine's exhaustively enumerated failure
// modes, listed as the constants below; New does not validate the Kind
// it is given.
type Kind string

const (
	OOM                        Kind = "oom"
	IOAccess                   Kind = "io_access"
	IOOpen                     Kind = "io_open"
	IOWrite                    Kind = "io_write"
	IOSync                     Kind = "io_sync"
	IOClose                    Kind = "io_close"
	IOUnlink                   Kind = "io_unlink"
	FileMD5Mismatch            Kind = "file_md5_mismatch"
	DuplicateTimeMismatch      Kind = "duplicate_time_mismatch"
	OverlapWithStored          Kind = "overlap_with_stored"
	OverlappingInputData       Kind = "overlapping_input_data"
	TimeOrderViolation         Kind = "time_order_violation"
	FutureTime                 Kind = "future_time"
	MinTime                    Kind = "min_time"
	ConflictingTimeValues      Kind = "conflicting_time_values"
	UnitConvertFailed          Kind = "unit_convert_failed"
	TypeMismatch               Kind = "type_mismatch"
	DimMismatch                Kind = "dim_mismatch"
	MissingRequiredVar         Kind = "missing_required_var"
	MissingOptionalMappedCoord Kind = "missing_optional_mapped_coord"
	NoDOD                      Kind = "no_dod"
	BadFormat                  Kind = "bad_format"
	BitDescriptionMissing      Kind = "bit_description_missing"
	UserHookSkip               Kind = "user_hook_skip"
	NoSuchName                 Kind = "no_such_name"
	DimensionLocked            Kind = "dimension_locked"
)

// fatalByDefault holds the kinds that bypass force mode: memory, future
// time, and min time errors always abort the run.
var fatalByDefault = map[Kind]bool{
	OOM:        true,
	FutureTime: true,
	MinTime:    true,
}

// Error is the engine's standard error value: a Kind plus a formatted
// message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind, formatting message in the
// conventional "pkg.Func: detail" style.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsFatal reports whether an error of this kind bypasses force mode and
// must always abort the run.
func (k Kind) IsFatal() bool { return fatalByDefault[k] }

// As extracts the Kind of err if it is (or wraps) a *Error, returning ok=false
// otherwise.
func As(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
