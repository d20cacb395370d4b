package backupcodec

import (
	"testing"

	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/envelope"
	"github.com/opd-ai/privacycore/internal/keyregistry"
)

func newHarness(t *testing.T) (*Codec, *keyregistry.Registry) {
	t.Helper()
	w, err := envelope.Generate()
	if err != nil {
		t.Fatalf("envelope.Generate() error: %v", err)
	}
	registry := keyregistry.New(w)
	return New(registry, w), registry
}

func TestExportFailsWithNoKeys(t *testing.T) {
	codec, _ := newHarness(t)
	if _, err := codec.Export(1); err != domain.ErrNothingToBackUp {
		t.Errorf("expected ErrNothingToBackUp, got %v", err)
	}
}

func TestExportImportCycleIntoFreshAccount(t *testing.T) {
	codec, registry := newHarness(t)

	registry.CreateKey(1, "a", domain.AlgorithmAES128CBC)
	registry.CreateKey(1, "b", domain.AlgorithmRSA2048)

	artifact, err := codec.Export(1)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	// Restore into a registry that does not yet hold these public ids and
	// shares the master key the artifact was wrapped under.
	freshRegistry := keyregistry.New(codec.wrapper)
	restored, err := New(freshRegistry, codec.wrapper).Import(2, artifact)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if restored != 2 {
		t.Errorf("restored = %d, want 2", restored)
	}

	keysForNewOwner := freshRegistry.ListKeysFor(2)
	if len(keysForNewOwner) != 2 {
		t.Fatalf("ListKeysFor(2) returned %d keys, want 2", len(keysForNewOwner))
	}
}

func TestImportIsIdempotentForExistingPublicIDs(t *testing.T) {
	codec, registry := newHarness(t)
	registry.CreateKey(1, "a", domain.AlgorithmAES128CBC)

	artifact, err := codec.Export(1)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	// The target registry starts without the exported public id.
	target := New(keyregistry.New(codec.wrapper), codec.wrapper)
	first, err := target.Import(2, artifact)
	if err != nil {
		t.Fatalf("first Import() error: %v", err)
	}
	if first != 1 {
		t.Fatalf("first Import() restored = %d, want 1", first)
	}

	second, err := target.Import(3, artifact)
	if err != nil {
		t.Fatalf("second Import() error: %v", err)
	}
	if second != 0 {
		t.Errorf("second Import() restored = %d, want 0 (idempotent)", second)
	}
}

func TestImportRejectsMalformedArtifact(t *testing.T) {
	codec, _ := newHarness(t)

	if _, err := codec.Import(1, "not-a-valid-artifact"); err != domain.ErrMalformedBackup {
		t.Errorf("expected ErrMalformedBackup, got %v", err)
	}
	if _, err := codec.Import(1, "aa:bb:cc"); err != domain.ErrMalformedBackup {
		t.Errorf("expected ErrMalformedBackup, got %v", err)
	}
}
