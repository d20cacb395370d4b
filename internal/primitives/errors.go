package primitives

import "errors"

// Kind classifies a primitive-layer failure.
type Kind string

const (
	// BadKey indicates a key of the wrong length or an unparsable PEM block.
	BadKey Kind = "bad_key"
	// BadPadding indicates PKCS#7 or PKCS#1 v1.5 padding failed to validate.
	BadPadding Kind = "bad_padding"
	// BadSignature indicates an ECDSA signature failed to verify.
	BadSignature Kind = "bad_signature"
	// RngFailure indicates the CSPRNG could not produce entropy.
	RngFailure Kind = "rng_failure"
	// InputTooLarge indicates plaintext exceeds what the algorithm can carry
	// in one operation (RSA modulus/padding overhead).
	InputTooLarge Kind = "input_too_large"
)

// Error is the typed error returned by every primitive-layer function.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Msg + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Msg
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind around a lower-level cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err is a primitives.Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
