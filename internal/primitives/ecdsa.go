package primitives

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/opd-ai/privacycore/internal/obslog"
)

// GenerateECCKeyPair generates a P-256 key pair, returning SPKI/PKCS#8 PEM
// blocks, following the same key-generation shape as ed25519.go generalized
// to the P-256 curve.
func GenerateECCKeyPair() (publicPEM, privatePEM []byte, err error) {
	logger := obslog.New("primitives", "GenerateECCKeyPair")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		logger.WithError(err, "rng_failure", "ecdsa.GenerateKey").Error("failed to generate ECC key pair")
		return nil, nil, Wrap(RngFailure, "ecdsa.GenerateKey", err)
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, Wrap(BadKey, "MarshalPKCS8PrivateKey", err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, Wrap(BadKey, "MarshalPKIXPublicKey", err)
	}

	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})
	return publicPEM, privatePEM, nil
}

// ECDSASign signs a SHA-256 digest of message with a PKCS#8-PEM P-256
// private key and returns an ASN.1 DER signature.
//
//export PrivacyCoreECDSASign
func ECDSASign(privatePEM, message []byte) ([]byte, error) {
	logger := obslog.New("primitives", "ECDSASign")

	priv, err := parseECDSAPrivateKey(privatePEM)
	if err != nil {
		logger.WithError(err, "bad_key", "parseECDSAPrivateKey").Error("invalid ECDSA private key")
		return nil, err
	}

	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		logger.WithError(err, "rng_failure", "ecdsa.SignASN1").Error("ECDSA signing failed")
		return nil, Wrap(RngFailure, "ecdsa.SignASN1", err)
	}
	return sig, nil
}

// ECDSAVerify verifies a signature produced by ECDSASign.
//
//export PrivacyCoreECDSAVerify
func ECDSAVerify(publicPEM, message, signature []byte) (bool, error) {
	logger := obslog.New("primitives", "ECDSAVerify")

	pub, err := parseECDSAPublicKey(publicPEM)
	if err != nil {
		logger.WithError(err, "bad_key", "parseECDSAPublicKey").Error("invalid ECDSA public key")
		return false, err
	}

	digest := sha256.Sum256(message)
	ok := ecdsa.VerifyASN1(pub, digest[:], signature)
	if !ok {
		logger.Warn("ECDSA signature verification failed")
	}
	return ok, nil
}

func parseECDSAPublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, New(BadKey, "not a PEM block")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, Wrap(BadKey, "ParsePKIXPublicKey", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, New(BadKey, "PEM block is not an ECDSA public key")
	}
	return pub, nil
}

func parseECDSAPrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, New(BadKey, "not a PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, Wrap(BadKey, "ParsePKCS8PrivateKey", err)
	}
	priv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, New(BadKey, "PEM block is not an ECDSA private key")
	}
	return priv, nil
}
