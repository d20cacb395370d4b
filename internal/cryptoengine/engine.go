package cryptoengine

import (
	"time"

	"github.com/opd-ai/privacycore/internal/anomaly"
	"github.com/opd-ai/privacycore/internal/audit"
	"github.com/opd-ai/privacycore/internal/clock"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/keyregistry"
	"github.com/opd-ai/privacycore/internal/metrics"
	"github.com/opd-ai/privacycore/internal/obslog"
	"github.com/opd-ai/privacycore/internal/operations"
	"github.com/opd-ai/privacycore/internal/primitives"
)

// Engine dispatches encrypt/decrypt calls across the four supported
// algorithms, wraps every call with the operations/audit double write and
// a fire-and-forget anomaly scan.
type Engine struct {
	registry *keyregistry.Registry
	ops      *operations.Store
	auditor  *audit.Recorder
	detector *anomaly.Detector
	metrics  *metrics.Registry
	clock    clock.Provider
}

// New wires an Engine against its four collaborators.
func New(registry *keyregistry.Registry, ops *operations.Store, auditor *audit.Recorder, detector *anomaly.Detector) *Engine {
	return &Engine{registry: registry, ops: ops, auditor: auditor, detector: detector, clock: clock.Default}
}

// SetMetrics attaches a metrics.Registry that every subsequent dispatch
// reports to. Passing nil detaches metrics reporting.
func (e *Engine) SetMetrics(m *metrics.Registry) {
	e.metrics = m
}

// Encrypt resolves keyInternalID, dispatches to the matching algorithm, and
// returns a self-describing envelope string.
func (e *Engine) Encrypt(actor, keyInternalID int64, plaintext []byte, resourceLabel string) (string, error) {
	logger := obslog.New("cryptoengine", "Encrypt").WithFields(map[string]interface{}{
		"actor": actor, "key_internal_id": keyInternalID,
	})

	start := e.clock.Now()

	payload, algorithm, err := e.registry.UnwrapMaterial(keyInternalID)
	if err != nil {
		e.recordFailure(actor, domain.ActionDataEncrypt, resourceLabel, err)
		e.metrics.ObserveOperation("unknown", "encrypt", "failure", e.clock.Since(start))
		return "", err
	}

	var envelope string
	switch algorithm {
	case domain.AlgorithmAES128CBC, domain.AlgorithmAES256CBC:
		envelope, err = encryptAES(payload, plaintext)
	case domain.AlgorithmRSA2048:
		envelope, err = encryptRSA(payload, plaintext)
	case domain.AlgorithmECCP256:
		envelope, err = encryptECC(payload, plaintext)
	default:
		err = domain.ErrBadAlgorithm
	}
	if err != nil {
		err = domain.FromPrimitiveError(err)
		logger.WithError(err, "dispatch_failed", "encrypt").Warn("encrypt dispatch failed")
		e.recordFailure(actor, domain.ActionDataEncrypt, resourceLabel, err)
		e.metrics.ObserveOperation(string(algorithm), "encrypt", "failure", e.clock.Since(start))
		return "", err
	}

	e.ops.Append(domain.OperationRecord{
		Actor: actor, KeyInternalID: &keyInternalID, Kind: domain.OperationEncrypt,
		Algorithm: algorithm, ResourceLabel: resourceLabel,
	})
	e.recordSuccess(actor, domain.ActionDataEncrypt, resourceLabel)
	e.metrics.ObserveOperation(string(algorithm), "encrypt", "success", e.clock.Since(start))
	logger.WithFields(obslog.OperationFields(string(algorithm), "success")).Debug("encrypt dispatch completed")
	go e.detector.AnalyzeAndRecord(actor)

	return envelope, nil
}

// Decrypt mirrors Encrypt: parses the envelope per algorithm and recovers
// the original plaintext.
func (e *Engine) Decrypt(actor, keyInternalID int64, envelope, resourceLabel string) ([]byte, error) {
	logger := obslog.New("cryptoengine", "Decrypt").WithFields(map[string]interface{}{
		"actor": actor, "key_internal_id": keyInternalID,
	})

	start := e.clock.Now()

	payload, algorithm, err := e.registry.UnwrapMaterial(keyInternalID)
	if err != nil {
		e.recordFailure(actor, domain.ActionDataDecrypt, resourceLabel, err)
		e.metrics.ObserveOperation("unknown", "decrypt", "failure", e.clock.Since(start))
		return nil, err
	}

	var plaintext []byte
	switch algorithm {
	case domain.AlgorithmAES128CBC, domain.AlgorithmAES256CBC:
		plaintext, err = decryptAES(payload, envelope)
	case domain.AlgorithmRSA2048:
		plaintext, err = decryptRSA(payload, envelope)
	case domain.AlgorithmECCP256:
		plaintext, err = decryptECC(payload, envelope)
	default:
		err = domain.ErrBadAlgorithm
	}
	if err != nil {
		err = domain.FromPrimitiveError(err)
		logger.WithError(err, "dispatch_failed", "decrypt").Warn("decrypt dispatch failed")
		e.recordFailure(actor, domain.ActionDataDecrypt, resourceLabel, err)
		e.metrics.ObserveOperation(string(algorithm), "decrypt", "failure", e.clock.Since(start))
		return nil, err
	}

	e.ops.Append(domain.OperationRecord{
		Actor: actor, KeyInternalID: &keyInternalID, Kind: domain.OperationDecrypt,
		Algorithm: algorithm, ResourceLabel: resourceLabel,
	})
	e.recordSuccess(actor, domain.ActionDataDecrypt, resourceLabel)
	e.metrics.ObserveOperation(string(algorithm), "decrypt", "success", e.clock.Since(start))
	logger.WithFields(obslog.OperationFields(string(algorithm), "success")).Debug("decrypt dispatch completed")
	go e.detector.AnalyzeAndRecord(actor)

	return plaintext, nil
}

func (e *Engine) recordSuccess(actor int64, action domain.AuditAction, resourceLabel string) {
	resource := resourceLabel
	if _, err := e.auditor.Record(domain.AuditRecord{
		Actor: &actor, Action: action, Resource: &resource, Status: domain.AuditSuccess,
	}); err != nil {
		obslog.New("cryptoengine", "recordSuccess").WithError(err, "audit_write_failed", "Record").Error("failed to write success audit record")
	}
}

func (e *Engine) recordFailure(actor int64, action domain.AuditAction, resourceLabel string, cause error) {
	resource := resourceLabel
	details := map[string]interface{}{"error": domain.ClassifyForAudit(cause)}
	if _, err := e.auditor.Record(domain.AuditRecord{
		Actor: &actor, Action: action, Resource: &resource, Status: domain.AuditFailed, Details: details,
	}); err != nil {
		obslog.New("cryptoengine", "recordFailure").WithError(err, "audit_write_failed", "Record").Error("failed to write failure audit record")
	}
	// Anomaly analysis still runs on a failure path.
	go e.detector.AnalyzeAndRecord(actor)
}

func encryptAES(payload keyregistry.Payload, plaintext []byte) (string, error) {
	key, err := payload.AESKey()
	if err != nil {
		return "", err
	}
	iv, err := primitives.RandomBytes(primitives.AESBlockSize)
	if err != nil {
		return "", err
	}
	ciphertext, err := primitives.AESCBCEncrypt(key, iv, plaintext)
	if err != nil {
		return "", err
	}
	return formatAESEnvelope(iv, ciphertext), nil
}

func decryptAES(payload keyregistry.Payload, envelope string) ([]byte, error) {
	key, err := payload.AESKey()
	if err != nil {
		return nil, err
	}
	iv, ciphertext, err := parseAESEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	return primitives.AESCBCDecrypt(key, iv, ciphertext)
}

func encryptRSA(payload keyregistry.Payload, plaintext []byte) (string, error) {
	ciphertext, err := primitives.RSAEncrypt(payload.PublicKeyPEM(), plaintext)
	if err != nil {
		return "", err
	}
	return formatRSAEnvelope(ciphertext), nil
}

func decryptRSA(payload keyregistry.Payload, envelope string) ([]byte, error) {
	ciphertext, err := parseRSAEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	return primitives.RSADecrypt(payload.PrivateKeyPEM(), ciphertext)
}

// encryptECC implements ECC-P256 hybrid encryption: an ephemeral P-256 key
// pair, ECDH against the recipient's stored public key, SHA-256 of the
// shared secret as the AES key.
func encryptECC(payload keyregistry.Payload, plaintext []byte) (string, error) {
	recipientPub, err := primitives.ECDSAPublicKeyFromPEM(payload.PublicKeyPEM())
	if err != nil {
		return "", err
	}
	recipientECDHPub, err := primitives.ECDSAPublicKeyToECDH(recipientPub)
	if err != nil {
		return "", err
	}

	ephemeral, err := primitives.GenerateEphemeralECDH()
	if err != nil {
		return "", err
	}
	shared, err := primitives.ECDHAgree(ephemeral.Private, recipientECDHPub.Bytes())
	if err != nil {
		return "", err
	}
	aesKey := primitives.SHA256(shared)

	iv, err := primitives.RandomBytes(primitives.AESBlockSize)
	if err != nil {
		return "", err
	}
	ciphertext, err := primitives.AESCBCEncrypt(aesKey[:], iv, plaintext)
	if err != nil {
		return "", err
	}
	return formatECCEnvelope(ephemeral.PublicRaw, iv, ciphertext), nil
}

func decryptECC(payload keyregistry.Payload, envelope string) ([]byte, error) {
	ephemeralPubRaw, iv, ciphertext, err := parseECCEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	recipientPriv, err := primitives.ECDSAPrivateKeyFromPEM(payload.PrivateKeyPEM())
	if err != nil {
		return nil, err
	}
	recipientECDHPriv, err := primitives.ECDSAPrivateKeyToECDH(recipientPriv)
	if err != nil {
		return nil, err
	}

	shared, err := primitives.ECDHAgree(recipientECDHPriv, ephemeralPubRaw)
	if err != nil {
		return nil, err
	}
	aesKey := primitives.SHA256(shared)

	return primitives.AESCBCDecrypt(aesKey[:], iv, ciphertext)
}
