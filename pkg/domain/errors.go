package domain

import (
	"errors"
	"fmt"
)

// ErrConflict is returned when a merge keeps losing the optimistic
// concurrency check after the bounded retries are exhausted.
var ErrConflict = errors.New("session record changed concurrently")

// ErrorKind classifies repository failures so callers can tell
// not-found from ambiguous matches, bad input and store outages.
type ErrorKind int

const (
	// KindNotFound means zero records matched a team-scoped query.
	KindNotFound ErrorKind = iota
	// KindAmbiguousMatch means more than one record matched where
	// exactly one was required.
	KindAmbiguousMatch
	// KindStoreUnavailable wraps a transient failure from the backing
	// table store.
	KindStoreUnavailable
	// KindValidationFailed means the caller supplied an argument the
	// repository refuses to act on.
	KindValidationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAmbiguousMatch:
		return "ambiguous match"
	case KindStoreUnavailable:
		return "store unavailable"
	case KindValidationFailed:
		return "validation failed"
	default:
		return "unknown"
	}
}

// Error is the tagged failure type returned by session repositories.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Ambiguousf builds a KindAmbiguousMatch error.
func Ambiguousf(format string, args ...any) *Error {
	return &Error{Kind: KindAmbiguousMatch, Msg: fmt.Sprintf(format, args...)}
}

// Validationf builds a KindValidationFailed error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, Msg: fmt.Sprintf(format, args...)}
}

// StoreUnavailable wraps err as a KindStoreUnavailable error.
func StoreUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Msg: msg, Err: err}
}

// IsKind reports whether err is a repository Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsAmbiguous reports whether err is an ambiguous-match failure.
func IsAmbiguous(err error) bool { return IsKind(err, KindAmbiguousMatch) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return IsKind(err, KindValidationFailed) }

// IsStoreUnavailable reports whether err is a transient store failure.
func IsStoreUnavailable(err error) bool { return IsKind(err, KindStoreUnavailable) }
