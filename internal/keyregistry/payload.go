package keyregistry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/primitives"
)

// Payload is the canonical, algorithm-tagged structure serialized, wrapped,
// and persisted as KeyRecord.WrappedMaterial: a tagged record with named
// fields for key or publicKey/privateKey depending on the algorithm. AES
// keys use Key; RSA and ECC keys use PublicKey/PrivateKey. The crypto
// engine reads Payload through UnwrapMaterial; it is never constructed
// outside this package.
type Payload struct {
	Key        string `json:"key,omitempty"`
	PublicKey  string `json:"publicKey,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
}

// generatePayload creates fresh key material for algorithm and serializes it
// into the canonical payload form.
func generatePayload(algorithm domain.Algorithm) ([]byte, error) {
	switch algorithm {
	case domain.AlgorithmAES128CBC:
		return generateAESPayload(16)
	case domain.AlgorithmAES256CBC:
		return generateAESPayload(32)
	case domain.AlgorithmRSA2048:
		return generateAsymmetricPayload(primitives.GenerateRSAKeyPair)
	case domain.AlgorithmECCP256:
		return generateAsymmetricPayload(primitives.GenerateECCKeyPair)
	default:
		return nil, domain.ErrBadAlgorithm
	}
}

func generateAESPayload(size int) ([]byte, error) {
	key, err := primitives.RandomBytes(size)
	if err != nil {
		return nil, err
	}
	defer primitives.ZeroBytes(key)

	return json.Marshal(Payload{Key: hex.EncodeToString(key)})
}

func generateAsymmetricPayload(gen func() (pub, priv []byte, err error)) ([]byte, error) {
	pub, priv, err := gen()
	if err != nil {
		return nil, err
	}
	return json.Marshal(Payload{
		PublicKey:  string(pub),
		PrivateKey: string(priv),
	})
}

// parsePayload decodes a canonical payload blob and validates it matches the
// shape expected for algorithm (KeyRecord invariant (b): wrapped_material
// decrypts to a structurally valid payload for algorithm).
func parsePayload(algorithm domain.Algorithm, raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("malformed key payload: %w", err)
	}

	switch algorithm {
	case domain.AlgorithmAES128CBC, domain.AlgorithmAES256CBC:
		if p.Key == "" {
			return Payload{}, fmt.Errorf("malformed AES payload: missing key")
		}
	case domain.AlgorithmRSA2048, domain.AlgorithmECCP256:
		if p.PublicKey == "" || p.PrivateKey == "" {
			return Payload{}, fmt.Errorf("malformed asymmetric payload: missing public or private key")
		}
	default:
		return Payload{}, domain.ErrBadAlgorithm
	}
	return p, nil
}

// AESKey decodes the hex-encoded symmetric key from an AES payload.
func (p Payload) AESKey() ([]byte, error) {
	return hex.DecodeString(p.Key)
}

// PublicKeyPEM returns the PEM-encoded public key of an asymmetric payload.
func (p Payload) PublicKeyPEM() []byte {
	return []byte(p.PublicKey)
}

// PrivateKeyPEM returns the PEM-encoded private key of an asymmetric payload.
func (p Payload) PrivateKeyPEM() []byte {
	return []byte(p.PrivateKey)
}
