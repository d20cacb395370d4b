// Package primitives implements the stateless cryptographic building blocks
// the rest of the core is built on: AES-CBC, RSA, ECDSA, ECDH, SHA-256, and
// CSPRNG access. Every function here is pure over byte slices and returns a
// typed *Error on any invalid input.
package primitives

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/opd-ai/privacycore/internal/obslog"
)

// AESBlockSize is the AES block size in bytes; also the IV length.
const AESBlockSize = aes.BlockSize

// AESCBCEncrypt PKCS#7-pads plaintext and encrypts it with AES in CBC mode.
// key must be 16 or 32 bytes (AES-128 or AES-256); iv must be 16 bytes.
//
//export PrivacyCoreAESCBCEncrypt
func AESCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	logger := obslog.New("primitives", "AESCBCEncrypt").WithFields(map[string]interface{}{
		"key_size":   len(key),
		"plain_size": len(plaintext),
	})

	block, err := aes.NewCipher(key)
	if err != nil {
		logger.WithError(err, "bad_key", "aes.NewCipher").Error("invalid AES key")
		return nil, Wrap(BadKey, "aes.NewCipher", err)
	}
	if len(iv) != AESBlockSize {
		return nil, New(BadKey, "iv must be 16 bytes")
	}

	padded := pkcs7Pad(plaintext, AESBlockSize)
	ciphertext := make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, iv)
	cbc.CryptBlocks(ciphertext, padded)

	logger.Debug("AES-CBC encryption succeeded")
	return ciphertext, nil
}

// AESCBCDecrypt decrypts AES-CBC ciphertext and removes PKCS#7 padding.
//
//export PrivacyCoreAESCBCDecrypt
func AESCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	logger := obslog.New("primitives", "AESCBCDecrypt").WithField("key_size", len(key))

	block, err := aes.NewCipher(key)
	if err != nil {
		logger.WithError(err, "bad_key", "aes.NewCipher").Error("invalid AES key")
		return nil, Wrap(BadKey, "aes.NewCipher", err)
	}
	if len(iv) != AESBlockSize {
		return nil, New(BadKey, "iv must be 16 bytes")
	}
	if len(ciphertext) == 0 || len(ciphertext)%AESBlockSize != 0 {
		return nil, New(BadPadding, "ciphertext is not a multiple of the block size")
	}

	plain := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, iv)
	cbc.CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain, AESBlockSize)
	if err != nil {
		logger.WithError(err, "bad_padding", "pkcs7Unpad").Warn("padding validation failed")
		return nil, Wrap(BadPadding, "pkcs7 unpad", err)
	}
	return unpadded, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, errors.New("invalid padding length byte")
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return data[:n-padLen], nil
}
