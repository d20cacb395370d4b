package primitives

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/opd-ai/privacycore/internal/obslog"
)

// RandomBytes draws n bytes from the process CSPRNG.
//
//export PrivacyCoreRandomBytes
func RandomBytes(n int) ([]byte, error) {
	logger := obslog.New("primitives", "RandomBytes").WithField("n", n)

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		logger.WithError(err, "rng_failure", "rand.Read").Error("failed to draw random bytes")
		return nil, Wrap(RngFailure, "rand.Read", err)
	}
	return buf, nil
}

// SHA256 returns the 32-byte SHA-256 digest of data.
//
//export PrivacyCoreSHA256
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
