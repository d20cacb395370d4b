package domain

import (
	"errors"

	"github.com/opd-ai/privacycore/internal/primitives"
)

// Sentinel errors forming the core's abstract error taxonomy. Cryptographic
// and input errors surface to the caller verbatim; authorization errors
// always surface as ErrNotAuthorized regardless of underlying cause, to
// avoid giving an oracle on why a request was denied; internal errors
// surface as ErrPersistenceFailure or ErrConfigMissing, sentinels that carry
// no detail of the underlying cause.
var (
	// Input errors
	ErrBadAlgorithm     = errors.New("unsupported algorithm")
	ErrInputTooLarge    = errors.New("input too large for this algorithm")
	ErrMalformedEnvelope = errors.New("malformed ciphertext envelope")
	ErrMalformedBackup  = errors.New("malformed backup artifact")

	// Authorization errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotAuthorized    = errors.New("not authorized")

	// State errors
	ErrKeyUnknown      = errors.New("key unknown")
	ErrKeyNotActive    = errors.New("key not active")
	ErrNothingToBackUp = errors.New("nothing to back up")

	// Cryptographic errors
	ErrBadPadding   = errors.New("bad padding")
	ErrBadSignature = errors.New("bad signature")
	ErrRngFailure   = errors.New("rng failure")

	// Internal errors
	ErrPersistenceFailure = errors.New("internal persistence failure")
	ErrConfigMissing      = errors.New("required configuration missing")
)

// Kind classifies an error for audit details without leaking its message,
// which may embed caller-supplied or cryptographic material.
type Kind string

const (
	KindInput          Kind = "input"
	KindAuthorization  Kind = "authorization"
	KindState          Kind = "state"
	KindCryptographic  Kind = "cryptographic"
	KindInternal       Kind = "internal"
)

// ClassifyForAudit maps a sentinel error to the sanitized string stored in
// AuditRecord.Details["error"]. Unknown errors are reported as "internal"
// so that no unclassified error message — which might embed plaintext or
// key material — ever reaches the audit log.
func ClassifyForAudit(err error) string {
	switch {
	case errors.Is(err, ErrBadAlgorithm):
		return "bad_algorithm"
	case errors.Is(err, ErrInputTooLarge):
		return "input_too_large"
	case errors.Is(err, ErrMalformedEnvelope):
		return "malformed_envelope"
	case errors.Is(err, ErrMalformedBackup):
		return "malformed_backup"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrKeyUnknown):
		return "key_unknown"
	case errors.Is(err, ErrKeyNotActive):
		return "key_not_active"
	case errors.Is(err, ErrNothingToBackUp):
		return "nothing_to_back_up"
	case errors.Is(err, ErrBadPadding):
		return "bad_padding"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrRngFailure):
		return "rng_failure"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence_failure"
	case errors.Is(err, ErrConfigMissing):
		return "config_missing"
	default:
		return "internal"
	}
}

// FromPrimitiveError translates a *primitives.Error into the matching
// domain sentinel, so that callers crossing the engine boundary and
// ClassifyForAudit only ever see the core's own error taxonomy. A key
// rejected as structurally invalid (primitives.BadKey) means the registry's
// stored material is corrupt rather than anything the caller supplied, so
// it maps to ErrPersistenceFailure rather than an input error. Errors that
// are not a *primitives.Error pass through unchanged.
func FromPrimitiveError(err error) error {
	var pe *primitives.Error
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Kind {
	case primitives.BadPadding:
		return ErrBadPadding
	case primitives.BadSignature:
		return ErrBadSignature
	case primitives.RngFailure:
		return ErrRngFailure
	case primitives.InputTooLarge:
		return ErrInputTooLarge
	default:
		return ErrPersistenceFailure
	}
}
