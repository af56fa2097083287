package types

import (
	"context"
	stderrors "errors"

	"github.com/juju/errors"
)

type ErrorKind int32

const (
	KindGeneric       ErrorKind = 0
	KindTokenLimit    ErrorKind = 1
	KindTimeout       ErrorKind = 2
	KindInvalidOutput ErrorKind = 3
	KindUserInterrupt ErrorKind = 4
	KindConfiguration ErrorKind = 5
	KindDependency    ErrorKind = 6
)

func (k ErrorKind) String() string {
	switch k {
	case KindTokenLimit:
		return "token_limit"
	case KindTimeout:
		return "timeout"
	case KindInvalidOutput:
		return "invalid_output"
	case KindUserInterrupt:
		return "user_interrupt"
	case KindConfiguration:
		return "configuration"
	case KindDependency:
		return "dependency"
	}
	return "generic"
}

type Severity int32

const (
	SeverityInfo     Severity = 0
	SeverityWarning  Severity = 1
	SeverityError    Severity = 2
	SeverityCritical Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	}
	return "error"
}

var (
	_ error = &ClassifiedError{}
)

/**
 * ClassifiedError tags an underlying error with a kind from the closed
 * taxonomy above, plus a severity. Retry policies and handlers dispatch
 * on the kind, never on concrete error types. Classifying an already
 * classified error keeps the innermost cause and the newest kind.
 */
type ClassifiedError struct {
	*baseError
	Kind     ErrorKind
	Severity Severity
}

func (e *ClassifiedError) Unwrap() error {
	return e.BaseErr
}

func NewClassifiedError(kind ErrorKind, otherErr error) error {
	return &ClassifiedError{baseError: newBaseErr(otherErr), Kind: kind, Severity: defaultSeverity(kind)}
}

func NewClassifiedErrorf(kind ErrorKind, format string, args ...interface{}) error {
	return NewClassifiedError(kind, errors.Errorf(format, args...))
}

func NewTokenLimitErrorf(format string, args ...interface{}) error {
	return NewClassifiedErrorf(KindTokenLimit, format, args...)
}

func NewTimeoutErrorf(format string, args ...interface{}) error {
	return NewClassifiedErrorf(KindTimeout, format, args...)
}

func NewInvalidOutputErrorf(format string, args ...interface{}) error {
	return NewClassifiedErrorf(KindInvalidOutput, format, args...)
}

func NewUserInterruptErrorf(format string, args ...interface{}) error {
	return NewClassifiedErrorf(KindUserInterrupt, format, args...)
}

func NewConfigurationErrorf(format string, args ...interface{}) error {
	return NewClassifiedErrorf(KindConfiguration, format, args...)
}

func NewDependencyErrorf(format string, args ...interface{}) error {
	return NewClassifiedErrorf(KindDependency, format, args...)
}

// WithSeverity overrides the severity a constructor assigned. Plain
// errors are classified Generic first.
func WithSeverity(err error, severity Severity) error {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		ce.Severity = severity
		return err
	}
	return &ClassifiedError{baseError: newBaseErr(err), Kind: KindGeneric, Severity: severity}
}

// KindOf resolves the taxonomy kind of any error. Context cancellation
// maps to UserInterrupt and deadline expiry to Timeout so operations
// built on context deadlines classify without extra wrapping.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindGeneric
	}
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce.Kind
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if stderrors.Is(err, context.Canceled) {
		return KindUserInterrupt
	}
	return KindGeneric
}

func SeverityOf(err error) Severity {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce.Severity
	}
	return defaultSeverity(KindOf(err))
}

func IsRetryable(err error) bool {
	kind := KindOf(err)
	for _, retryable := range DefaultRetryableKinds() {
		if kind == retryable {
			return true
		}
	}
	return false
}

func DefaultRetryableKinds() []ErrorKind {
	return []ErrorKind{KindTimeout, KindTokenLimit}
}

func defaultSeverity(kind ErrorKind) Severity {
	if kind == KindUserInterrupt {
		return SeverityInfo
	}
	return SeverityError
}

func newBaseErr(otherErr error) *baseError {
	return &baseError{unwrapErr(otherErr)}
}

func unwrapErr(err error) error {
	if err == nil {
		return nil
	}
	if ue, ok := err.(wrappedErr); ok {
		return unwrapErr(ue.UnwrapLocal())
	}
	return err
}

type wrappedErr interface {
	UnwrapLocal() error
}

type baseError struct {
	BaseErr error
}

func (e *baseError) Error() string {
	return e.BaseErr.Error()
}

func (e *baseError) UnwrapLocal() error {
	return e.BaseErr
}
