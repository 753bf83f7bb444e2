// Package errorList provides error aggregation and the internal-error
// taxonomy used by the shrinker phases.
package errorList

import (
	"errors"
	"fmt"
)

// ErrTooManyErrors is added to the ErrorList by the Trim method.
var ErrTooManyErrors = errors.New("too many errors")

// ErrorList wraps multiple errors as a single error.
type ErrorList []error

func (errs ErrorList) Error() string {
	if len(errs) == 0 {
		return "<no errors>"
	}
	return fmt.Sprintf("%s (and %d more errors)", errs[0].Error(), len(errs[1:]))
}

// ErrOrNil returns nil if ErrorList is empty, or the error otherwise.
func (errs ErrorList) ErrOrNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Append an error to the list.
//
// If err is an instance of ErrorList, the lists are concatenated together,
// otherwise err is appended at the end of the list. If err is nil, the list
// is returned unmodified.
func (errs ErrorList) Append(err error) ErrorList {
	if err == nil {
		return errs
	}
	if err, ok := err.(ErrorList); ok {
		return append(errs, err...)
	}
	return append(errs, err)
}

// Trim the error list if it has more than limit errors. If the list is
// trimmed, all extraneous errors are replaced with a single
// ErrTooManyErrors, making the returned ErrorList length of limit+1.
func (errs ErrorList) Trim(limit int) ErrorList {
	if len(errs) <= limit {
		return errs
	}

	return append(errs[:limit], ErrTooManyErrors)
}

// InternalError is an unrecoverable invariant violation inside a shrinker
// phase, e.g. a lens double-registration or an exhausted fresh-name probe.
// It aborts the whole compilation; it is never a user-input diagnostic.
type InternalError struct {
	// Phase names the phase that detected the violation.
	Phase string
	// Subject identifies the responsible class, group or member.
	Subject string
	// Err is the underlying cause.
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s (%s): %s", e.Phase, e.Subject, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internal builds an InternalError for the given phase and subject.
func Internal(phase, subject string, err error) *InternalError {
	return &InternalError{Phase: phase, Subject: subject, Err: err}
}

// Internalf is Internal with a formatted cause.
func Internalf(phase, subject, format string, args ...any) *InternalError {
	return Internal(phase, subject, fmt.Errorf(format, args...))
}

// RecoverInternal converts a panic raised inside a phase into an
// InternalError on *errp. Phases use panics for invariant violations; this
// is the single point where they are turned back into errors at the phase
// boundary. Non-error panic values are re-raised.
//
//	defer errorList.RecoverInternal("class merger", group.String(), &err)
func RecoverInternal(phase, subject string, errp *error) {
	p := recover()
	if p == nil {
		return
	}
	err, ok := p.(error)
	if !ok {
		panic(p)
	}
	var internal *InternalError
	if errors.As(err, &internal) {
		*errp = err
		return
	}
	*errp = Internal(phase, subject, err)
}
