// Package cryptoengine dispatches encrypt/decrypt operations across the four
// supported algorithms and produces/consumes self-describing ciphertext
// envelopes. Envelope parsing rejects any segment count that does not
// match the algorithm's format rather than guessing.
package cryptoengine

import (
	"encoding/hex"
	"strings"

	"github.com/opd-ai/privacycore/internal/domain"
)

func formatAESEnvelope(iv, ciphertext []byte) string {
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext)
}

func parseAESEnvelope(env string) (iv, ciphertext []byte, err error) {
	parts := strings.Split(env, ":")
	if len(parts) != 2 {
		return nil, nil, domain.ErrMalformedEnvelope
	}
	iv, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, domain.ErrMalformedEnvelope
	}
	ciphertext, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, domain.ErrMalformedEnvelope
	}
	return iv, ciphertext, nil
}

func formatRSAEnvelope(ciphertext []byte) string {
	return hex.EncodeToString(ciphertext)
}

func parseRSAEnvelope(env string) (ciphertext []byte, err error) {
	if strings.Contains(env, ":") {
		return nil, domain.ErrMalformedEnvelope
	}
	ciphertext, err = hex.DecodeString(env)
	if err != nil {
		return nil, domain.ErrMalformedEnvelope
	}
	return ciphertext, nil
}

func formatECCEnvelope(ephemeralPub, iv, ciphertext []byte) string {
	return hex.EncodeToString(ephemeralPub) + ":" + hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext)
}

func parseECCEnvelope(env string) (ephemeralPub, iv, ciphertext []byte, err error) {
	parts := strings.Split(env, ":")
	if len(parts) != 3 {
		return nil, nil, nil, domain.ErrMalformedEnvelope
	}
	ephemeralPub, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, nil, domain.ErrMalformedEnvelope
	}
	iv, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, nil, domain.ErrMalformedEnvelope
	}
	ciphertext, err = hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, domain.ErrMalformedEnvelope
	}
	return ephemeralPub, iv, ciphertext, nil
}
