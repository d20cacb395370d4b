package primitives

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"

	"github.com/opd-ai/privacycore/internal/obslog"
)

// EphemeralECDHKeyPair is a one-shot P-256 key pair generated for a single
// hybrid encryption, plus its raw (uncompressed-point) public key bytes —
// the form embedded in the ECC-P256 envelope.
type EphemeralECDHKeyPair struct {
	Private   *ecdh.PrivateKey
	PublicRaw []byte
}

// GenerateEphemeralECDH generates a fresh P-256 key pair for one hybrid
// encryption operation.
//
//export PrivacyCoreGenerateEphemeralECDH
func GenerateEphemeralECDH() (*EphemeralECDHKeyPair, error) {
	logger := obslog.New("primitives", "GenerateEphemeralECDH")

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		logger.WithError(err, "rng_failure", "ecdh.GenerateKey").Error("failed to generate ephemeral ECDH key")
		return nil, Wrap(RngFailure, "ecdh.GenerateKey", err)
	}
	return &EphemeralECDHKeyPair{Private: priv, PublicRaw: priv.PublicKey().Bytes()}, nil
}

// ECDHAgree computes the shared secret between localPrivate and a raw
// (uncompressed-point) peer public key on P-256.
//
//export PrivacyCoreECDHAgree
func ECDHAgree(localPrivate *ecdh.PrivateKey, peerPublicRaw []byte) ([]byte, error) {
	logger := obslog.New("primitives", "ECDHAgree")

	peerPub, err := ecdh.P256().NewPublicKey(peerPublicRaw)
	if err != nil {
		logger.WithError(err, "bad_key", "ecdh.NewPublicKey").Error("peer public key is not a valid P-256 point")
		return nil, Wrap(BadKey, "peer public key not on curve", err)
	}

	secret, err := localPrivate.ECDH(peerPub)
	if err != nil {
		logger.WithError(err, "bad_key", "ECDH").Error("ECDH agreement failed")
		return nil, Wrap(BadKey, "ecdh agreement", err)
	}
	return secret, nil
}

// ECDSAPrivateKeyToECDH converts a registry-stored ECDSA P-256 private key
// (the KeyRecord payload's representation) into its ECDH equivalent so the
// same stored key pair can serve both signing and key-agreement.
func ECDSAPrivateKeyToECDH(priv *ecdsa.PrivateKey) (*ecdh.PrivateKey, error) {
	ecdhPriv, err := priv.ECDH()
	if err != nil {
		return nil, Wrap(BadKey, "ecdsa private key is not on a Weierstrass curve supporting ECDH", err)
	}
	return ecdhPriv, nil
}

// ECDSAPublicKeyToECDH converts a registry-stored ECDSA P-256 public key
// into its ECDH equivalent, mirroring ECDSAPrivateKeyToECDH for the sender
// side of hybrid encryption.
func ECDSAPublicKeyToECDH(pub *ecdsa.PublicKey) (*ecdh.PublicKey, error) {
	ecdhPub, err := pub.ECDH()
	if err != nil {
		return nil, Wrap(BadKey, "ecdsa public key is not on a Weierstrass curve supporting ECDH", err)
	}
	return ecdhPub, nil
}

// ECDSAPrivateKeyFromPEM parses a PKCS#8-PEM ECDSA private key, exported for
// callers that need both the ECDSA and ECDH views of the same stored key.
func ECDSAPrivateKeyFromPEM(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	return parseECDSAPrivateKey(pemBytes)
}

// ECDSAPublicKeyFromPEM parses a PKIX-PEM ECDSA public key.
func ECDSAPublicKeyFromPEM(pemBytes []byte) (*ecdsa.PublicKey, error) {
	return parseECDSAPublicKey(pemBytes)
}
