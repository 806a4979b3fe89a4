// Package fhevmErrors defines the labeled error taxonomy shared by every
// component of the session manager. Each failure carries a Kind that callers
// can branch on, a human readable message and an optional cause.
package fhevmErrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind labels a class of failure.
type Kind string

const (
	KindNetworkUnreachable Kind = "NetworkUnreachable"
	KindSdkUnavailable     Kind = "SdkUnavailable"
	KindSdkInitFailed      Kind = "SdkInitFailed"
	KindUnsupportedChain   Kind = "UnsupportedChain"
	KindConfigMismatch     Kind = "ConfigMismatch"
	KindRelayerUnavailable Kind = "RelayerUnavailable"
	KindInvalidConfig      Kind = "InvalidConfig"
	KindAbort              Kind = "AbortError"
	KindSignatureDenied    Kind = "SignatureDenied"
	KindStaleState         Kind = "StaleState"
	KindEncryptionFailed   Kind = "EncryptionFailed"
	KindDecryptionFailed   Kind = "DecryptionFailed"
)

// Error is a labeled error with an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Kind, so sentinel comparisons such as
// errors.Is(err, fhevmErrors.ErrAbort) work regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrNetworkUnreachable = &Error{Kind: KindNetworkUnreachable}
	ErrSdkUnavailable     = &Error{Kind: KindSdkUnavailable}
	ErrSdkInitFailed      = &Error{Kind: KindSdkInitFailed}
	ErrUnsupportedChain   = &Error{Kind: KindUnsupportedChain}
	ErrConfigMismatch     = &Error{Kind: KindConfigMismatch}
	ErrRelayerUnavailable = &Error{Kind: KindRelayerUnavailable}
	ErrInvalidConfig      = &Error{Kind: KindInvalidConfig}
	ErrAbort              = &Error{Kind: KindAbort}
	ErrSignatureDenied    = &Error{Kind: KindSignatureDenied}
	ErrStaleState         = &Error{Kind: KindStaleState}
	ErrEncryptionFailed   = &Error{Kind: KindEncryptionFailed}
	ErrDecryptionFailed   = &Error{Kind: KindDecryptionFailed}
)

// New creates a labeled error.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf creates a labeled error without a cause from a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first labeled error in err's chain, or the
// empty Kind if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains a labeled error of the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// IsAbort reports whether err is itself a cancellation: its first labeled
// error is an AbortError, or it is a bare context error. A failure of another
// kind that wraps a timeout is not an abort.
func IsAbort(err error) bool {
	if err == nil {
		return false
	}
	if kind := KindOf(err); kind != "" {
		return kind == KindAbort
	}
	return err == context.Canceled || err == context.DeadlineExceeded
}

// IsFatal reports whether err is a developer misconfiguration that must not
// be retried without changing configuration.
func IsFatal(err error) bool {
	return IsKind(err, KindConfigMismatch) || IsKind(err, KindInvalidConfig)
}

// Abort returns an AbortError if ctx is done and nil otherwise. It is the
// cancellation check used at every suspension point.
func Abort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return New(KindAbort, "operation was cancelled", err)
	}
	return nil
}
