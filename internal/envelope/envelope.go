// Package envelope implements envelope encryption of key material under a
// process-wide master key, following EncryptedKeyStore's approach
// (crypto/keystore.go): PBKDF2-derived keys, secure wiping of intermediate
// material, and structured logging of every wrap/unwrap.
package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"

	"github.com/opd-ai/privacycore/internal/obslog"
	"github.com/opd-ai/privacycore/internal/primitives"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations is the NIST-recommended iteration count for
// passphrase-derived keys (crypto/keystore.go).
const PBKDF2Iterations = 100000

// MasterKeySize is the required master key length in bytes.
const MasterKeySize = 32

// Wrapper holds the process-lifetime master key used to wrap/unwrap key
// material. The master key is immutable for the process's lifetime;
// callers receive a *Wrapper by reference, never a copy of the key.
type Wrapper struct {
	masterKey [MasterKeySize]byte
	// Generated reports whether the master key was auto-generated rather
	// than supplied via configuration — an operational hazard that callers
	// should surface to operators.
	Generated bool
}

// LoadFromHex builds a Wrapper from a 32-byte hex-encoded master key, the
// PRIVACYCORE_MASTER_KEY configuration value.
func LoadFromHex(hexKey string) (*Wrapper, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("master key is not valid hex")
	}
	if len(raw) != MasterKeySize {
		return nil, errors.New("master key must be 32 bytes")
	}
	w := &Wrapper{}
	copy(w.masterKey[:], raw)
	primitives.ZeroBytes(raw)
	return w, nil
}

// DeriveFromPassphrase derives a master key from a passphrase and salt via
// PBKDF2-SHA256, the same construction EncryptedKeyStore uses for at-rest
// encryption keys.
func DeriveFromPassphrase(passphrase, salt []byte) (*Wrapper, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}
	derived := pbkdf2.Key(passphrase, salt, PBKDF2Iterations, MasterKeySize, sha256.New)
	w := &Wrapper{}
	copy(w.masterKey[:], derived)
	primitives.ZeroBytes(derived)
	return w, nil
}

// Generate creates a Wrapper around a freshly generated random master key
// and marks it as Generated — every subsequent wrap is only durable for
// this process's lifetime.
func Generate() (*Wrapper, error) {
	logger := obslog.New("envelope", "Generate")

	raw, err := primitives.RandomBytes(MasterKeySize)
	if err != nil {
		return nil, err
	}
	w := &Wrapper{Generated: true}
	copy(w.masterKey[:], raw)
	primitives.ZeroBytes(raw)

	logger.Warn("master key was auto-generated: ciphertext from this process cannot be decrypted after restart unless PRIVACYCORE_MASTER_KEY is configured")
	return w, nil
}

// LoadFromEnvironment loads a Wrapper the way the core expects to be
// configured in production: PRIVACYCORE_MASTER_KEY (hex) takes priority,
// then PRIVACYCORE_MASTER_KEY_PASSPHRASE (PBKDF2-derived against a fixed,
// configuration-documented salt), then a generated key as a last resort
// with the operational-hazard warning logged.
func LoadFromEnvironment() (*Wrapper, error) {
	if hexKey := os.Getenv("PRIVACYCORE_MASTER_KEY"); hexKey != "" {
		return LoadFromHex(hexKey)
	}
	if passphrase := os.Getenv("PRIVACYCORE_MASTER_KEY_PASSPHRASE"); passphrase != "" {
		salt := []byte("privacycore-master-key-salt-v1")
		return DeriveFromPassphrase([]byte(passphrase), salt)
	}
	return Generate()
}

// Wrap encrypts payload under the master key with a fresh random IV,
// returning both — the caller persists wrapIV and wrapped alongside the
// KeyRecord they belong to.
func (w *Wrapper) Wrap(payload []byte) (wrapIV, wrapped []byte, err error) {
	logger := obslog.New("envelope", "Wrap").WithField("payload_size", len(payload))

	iv, err := primitives.RandomBytes(primitives.AESBlockSize)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err := primitives.AESCBCEncrypt(w.masterKey[:], iv, payload)
	if err != nil {
		logger.WithError(err, "wrap_failed", "AESCBCEncrypt").Error("failed to wrap payload")
		return nil, nil, err
	}
	logger.Debug("payload wrapped under master key")
	return iv, ciphertext, nil
}

// Unwrap decrypts wrapped material that was produced by Wrap with the given
// wrapIV.
func (w *Wrapper) Unwrap(wrapIV, wrapped []byte) ([]byte, error) {
	logger := obslog.New("envelope", "Unwrap")

	plaintext, err := primitives.AESCBCDecrypt(w.masterKey[:], wrapIV, wrapped)
	if err != nil {
		logger.WithError(err, "unwrap_failed", "AESCBCDecrypt").Warn("failed to unwrap payload")
		return nil, err
	}
	return plaintext, nil
}

// KeyBytes exposes the raw master key for components that need to derive a
// related key (e.g. the audit log's HMAC sealing key) without persisting a
// second secret. The returned slice aliases the Wrapper's internal array and
// must not be retained past the caller's own key-derivation step.
func (w *Wrapper) KeyBytes() []byte {
	return w.masterKey[:]
}
