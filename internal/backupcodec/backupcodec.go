// Package backupcodec implements the key export/import artifact format: a
// master-key-wrapped JSON document of a single owner's KeyRecords,
// addressed by their stable public_id so restores are idempotent across
// accounts.
package backupcodec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/opd-ai/privacycore/internal/clock"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/envelope"
	"github.com/opd-ai/privacycore/internal/keyregistry"
	"github.com/opd-ai/privacycore/internal/obslog"
	"github.com/opd-ai/privacycore/internal/primitives"
)

const artifactVersion = "1.0"

type document struct {
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
	Keys      []documentEntry `json:"keys"`
}

type documentEntry struct {
	PublicID        string    `json:"public_id"`
	Name            string    `json:"name"`
	Algorithm       string    `json:"algorithm"`
	Status          string    `json:"status"`
	CreatedAt       string    `json:"created_at"`
	WrappedMaterial string    `json:"wrapped_material"`
	WrapIV          string    `json:"wrap_iv"`
}

// Codec exports and imports KeyRecord backups for one registry.
type Codec struct {
	registry *keyregistry.Registry
	wrapper  *envelope.Wrapper
	clock    clock.Provider
}

// New creates a Codec operating on registry's records, wrapped under
// wrapper's master key.
func New(registry *keyregistry.Registry, wrapper *envelope.Wrapper) *Codec {
	return NewWithClock(registry, wrapper, clock.Default)
}

// NewWithClock is New with an injectable clock, for deterministic tests.
func NewWithClock(registry *keyregistry.Registry, wrapper *envelope.Wrapper, clk clock.Provider) *Codec {
	return &Codec{registry: registry, wrapper: wrapper, clock: clk}
}

// Export builds the backup artifact for every key owned by owner.
func (c *Codec) Export(owner int64) (string, error) {
	logger := obslog.New("backupcodec", "Export").WithField("owner", owner)

	records := c.registry.ListKeysFor(owner)
	if len(records) == 0 {
		return "", domain.ErrNothingToBackUp
	}

	doc := document{
		Version:   artifactVersion,
		Timestamp: c.clock.Now().UTC().Format(rfc3339Format),
		Keys:      make([]documentEntry, 0, len(records)),
	}
	for _, rec := range records {
		doc.Keys = append(doc.Keys, documentEntry{
			PublicID:        rec.PublicID,
			Name:            rec.Name,
			Algorithm:       string(rec.Algorithm),
			Status:          string(rec.Status),
			CreatedAt:       rec.CreatedAt.UTC().Format(rfc3339Format),
			WrappedMaterial: hex.EncodeToString(rec.WrappedMaterial),
			WrapIV:          hex.EncodeToString(rec.WrapIV),
		})
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal backup document: %w", err)
	}

	iv, ciphertext, err := c.wrapper.Wrap(raw)
	if err != nil {
		logger.WithError(err, "wrap_failed", "Wrap").Error("failed to wrap backup document")
		return "", err
	}

	logger.WithField("key_count", len(records)).Info("backup exported")
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Import unwraps artifact and inserts every key whose public_id is not
// already present, reassigning ownership to importer. Returns the count of
// newly inserted keys.
func (c *Codec) Import(importer int64, artifact string) (restored int, err error) {
	logger := obslog.New("backupcodec", "Import").WithField("importer", importer)

	iv, ciphertext, err := splitArtifact(artifact)
	if err != nil {
		return 0, err
	}

	raw, err := c.wrapper.Unwrap(iv, ciphertext)
	if err != nil {
		logger.WithError(err, "unwrap_failed", "Unwrap").Warn("failed to unwrap backup artifact")
		return 0, domain.ErrMalformedBackup
	}
	defer primitives.ZeroBytes(raw)

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, domain.ErrMalformedBackup
	}
	if doc.Keys == nil {
		return 0, domain.ErrMalformedBackup
	}

	var errs *multierror.Error
	for _, entry := range doc.Keys {
		ok, entryErr := c.importEntry(importer, entry)
		if entryErr != nil {
			errs = multierror.Append(errs, fmt.Errorf("public_id %s: %w", entry.PublicID, entryErr))
			continue
		}
		if ok {
			restored++
		}
	}

	logger.WithFields(map[string]interface{}{"restored": restored, "total_entries": len(doc.Keys)}).Info("backup imported")
	if errs != nil {
		return restored, fmt.Errorf("%w: %s", domain.ErrMalformedBackup, errs.Error())
	}
	return restored, nil
}

func (c *Codec) importEntry(importer int64, entry documentEntry) (inserted bool, err error) {
	if entry.PublicID == "" {
		return false, fmt.Errorf("missing public_id")
	}
	algorithm := domain.Algorithm(entry.Algorithm)
	if !algorithm.Valid() {
		return false, fmt.Errorf("unsupported algorithm %q", entry.Algorithm)
	}

	wrappedMaterial, err := hex.DecodeString(entry.WrappedMaterial)
	if err != nil {
		return false, fmt.Errorf("malformed wrapped_material: %w", err)
	}
	wrapIV, err := hex.DecodeString(entry.WrapIV)
	if err != nil {
		return false, fmt.Errorf("malformed wrap_iv: %w", err)
	}

	inserted = c.registry.InsertRestored(importer, entry.PublicID, algorithm, domain.KeyStatus(entry.Status), entry.Name, wrapIV, wrappedMaterial)
	return inserted, nil
}

func splitArtifact(artifact string) (iv, ciphertext []byte, err error) {
	sep := -1
	for i, c := range artifact {
		if c == ':' {
			if sep != -1 {
				return nil, nil, domain.ErrMalformedBackup
			}
			sep = i
		}
	}
	if sep <= 0 || sep == len(artifact)-1 {
		return nil, nil, domain.ErrMalformedBackup
	}

	iv, err = hex.DecodeString(artifact[:sep])
	if err != nil {
		return nil, nil, domain.ErrMalformedBackup
	}
	ciphertext, err = hex.DecodeString(artifact[sep+1:])
	if err != nil {
		return nil, nil, domain.ErrMalformedBackup
	}
	return iv, ciphertext, nil
}

const rfc3339Format = "2006-01-02T15:04:05Z07:00"
