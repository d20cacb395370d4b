package primitives

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/opd-ai/privacycore/internal/obslog"
)

// RSAKeySizeBits is the modulus size generated by GenerateRSAKeyPair.
const RSAKeySizeBits = 2048

// GenerateRSAKeyPair generates an RSA-2048 key pair and returns its
// SPKI-encoded public key and PKCS#8-encoded private key, both PEM blocks —
// the same encodings crypto/x509 round-trips without hand-rolled ASN.1
// scanning (see the hybrid-construction design note).
func GenerateRSAKeyPair() (publicPEM, privatePEM []byte, err error) {
	logger := obslog.New("primitives", "GenerateRSAKeyPair")

	key, err := rsa.GenerateKey(rand.Reader, RSAKeySizeBits)
	if err != nil {
		logger.WithError(err, "rng_failure", "rsa.GenerateKey").Error("failed to generate RSA key pair")
		return nil, nil, Wrap(RngFailure, "rsa.GenerateKey", err)
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

// RSAEncrypt encrypts plaintext under a SPKI-PEM RSA public key using
// PKCS#1 v1.5 padding. Input must be at most (modulus_bytes - 11) bytes.
//
//export PrivacyCoreRSAEncrypt
func RSAEncrypt(publicPEM, plaintext []byte) ([]byte, error) {
	logger := obslog.New("primitives", "RSAEncrypt").WithField("plain_size", len(plaintext))

	pub, err := parseRSAPublicKey(publicPEM)
	if err != nil {
		logger.WithError(err, "bad_key", "parseRSAPublicKey").Error("invalid RSA public key")
		return nil, err
	}

	maxLen := pub.Size() - 11
	if len(plaintext) > maxLen {
		return nil, New(InputTooLarge, "plaintext exceeds PKCS#1 v1.5 capacity for this modulus")
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
	if err != nil {
		logger.WithError(err, "rng_failure", "rsa.EncryptPKCS1v15").Error("RSA encryption failed")
		return nil, Wrap(RngFailure, "rsa.EncryptPKCS1v15", err)
	}
	return ciphertext, nil
}

// RSADecrypt decrypts ciphertext under a PKCS#8-PEM RSA private key.
//
//export PrivacyCoreRSADecrypt
func RSADecrypt(privatePEM, ciphertext []byte) ([]byte, error) {
	logger := obslog.New("primitives", "RSADecrypt")

	priv, err := parseRSAPrivateKey(privatePEM)
	if err != nil {
		logger.WithError(err, "bad_key", "parseRSAPrivateKey").Error("invalid RSA private key")
		return nil, err
	}

	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		logger.WithError(err, "bad_padding", "rsa.DecryptPKCS1v15").Warn("RSA decryption failed")
		return nil, Wrap(BadPadding, "rsa.DecryptPKCS1v15", err)
	}
	return plaintext, nil
}

func parseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, New(BadKey, "not a PEM block")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, Wrap(BadKey, "ParsePKIXPublicKey", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, New(BadKey, "PEM block is not an RSA public key")
	}
	return pub, nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, New(BadKey, "not a PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, Wrap(BadKey, "ParsePKCS8PrivateKey", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, New(BadKey, "PEM block is not an RSA private key")
	}
	return priv, nil
}
