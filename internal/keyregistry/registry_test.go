package keyregistry

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/envelope"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	w, err := envelope.Generate()
	if err != nil {
		t.Fatalf("envelope.Generate() error: %v", err)
	}
	return New(w)
}

func TestCreateKeyPublicIDFormat(t *testing.T) {
	reg := newTestRegistry(t)

	rec, err := reg.CreateKey(1, "doc", domain.AlgorithmAES256CBC)
	if err != nil {
		t.Fatalf("CreateKey() error: %v", err)
	}

	if !strings.HasPrefix(rec.PublicID, "K-") {
		t.Errorf("public id %q does not start with K-", rec.PublicID)
	}
	parts := strings.Split(rec.PublicID, "-")
	if len(parts) != 3 {
		t.Fatalf("public id %q does not have 3 dash-separated segments", rec.PublicID)
	}
	if len(parts[2]) != 8 {
		t.Errorf("public id hex suffix length = %d, want 8", len(parts[2]))
	}
	if rec.Status != domain.KeyActive {
		t.Errorf("new key status = %q, want active", rec.Status)
	}
}

func TestCreateKeyRejectsBadAlgorithm(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.CreateKey(1, "bad", domain.Algorithm("ROT13")); err != domain.ErrBadAlgorithm {
		t.Errorf("expected ErrBadAlgorithm, got %v", err)
	}
}

func TestPublicIDUniqueAcrossCreations(t *testing.T) {
	reg := newTestRegistry(t)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		rec, err := reg.CreateKey(1, "k", domain.AlgorithmAES128CBC)
		if err != nil {
			t.Fatalf("CreateKey() error: %v", err)
		}
		if seen[rec.PublicID] {
			t.Fatalf("duplicate public id %q", rec.PublicID)
		}
		seen[rec.PublicID] = true
	}
}

func TestUnwrapMaterialBumpsLastUsedAt(t *testing.T) {
	reg := newTestRegistry(t)
	rec, _ := reg.CreateKey(1, "k", domain.AlgorithmAES128CBC)

	if before, _ := reg.GetKey(rec.InternalID); before.LastUsedAt != nil {
		t.Fatal("expected nil last_used_at on a fresh key")
	}

	if _, _, err := reg.UnwrapMaterial(rec.InternalID); err != nil {
		t.Fatalf("UnwrapMaterial() error: %v", err)
	}

	after, _ := reg.GetKey(rec.InternalID)
	if after.LastUsedAt == nil {
		t.Fatal("expected last_used_at to be set after UnwrapMaterial")
	}

	firstUse := *after.LastUsedAt
	if _, _, err := reg.UnwrapMaterial(rec.InternalID); err != nil {
		t.Fatalf("UnwrapMaterial() (second call) error: %v", err)
	}
	after2, _ := reg.GetKey(rec.InternalID)
	if after2.LastUsedAt.Before(firstUse) {
		t.Error("last_used_at decreased across calls")
	}
}

func TestRevokeThenUnwrapFails(t *testing.T) {
	reg := newTestRegistry(t)
	rec, _ := reg.CreateKey(1, "k", domain.AlgorithmAES128CBC)

	if err := reg.Revoke(rec.InternalID); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}

	if _, _, err := reg.UnwrapMaterial(rec.InternalID); err != domain.ErrKeyNotActive {
		t.Errorf("expected ErrKeyNotActive after revoke, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t)
	rec, _ := reg.CreateKey(1, "k", domain.AlgorithmAES128CBC)

	if err := reg.Revoke(rec.InternalID); err != nil {
		t.Fatalf("first Revoke() error: %v", err)
	}
	if err := reg.Revoke(rec.InternalID); err != nil {
		t.Errorf("second Revoke() should be a no-op success, got %v", err)
	}
}

func TestRevokeUnknownKey(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Revoke(999); err != domain.ErrKeyUnknown {
		t.Errorf("expected ErrKeyUnknown, got %v", err)
	}
}

func TestListKeysForOwnerIsolation(t *testing.T) {
	reg := newTestRegistry(t)
	_, _ = reg.CreateKey(1, "a", domain.AlgorithmAES128CBC)
	_, _ = reg.CreateKey(1, "b", domain.AlgorithmAES128CBC)
	_, _ = reg.CreateKey(2, "c", domain.AlgorithmAES128CBC)

	keys := reg.ListKeysFor(1)
	if len(keys) != 2 {
		t.Fatalf("ListKeysFor(1) returned %d keys, want 2", len(keys))
	}

	if len(reg.ListKeysFor(2)) != 1 {
		t.Fatalf("ListKeysFor(2) returned %d keys, want 1", len(reg.ListKeysFor(2)))
	}
}

func TestGetKeyReturnsIndependentClone(t *testing.T) {
	reg := newTestRegistry(t)
	rec, _ := reg.CreateKey(1, "k", domain.AlgorithmAES128CBC)

	first, _ := reg.GetKey(rec.InternalID)
	second, _ := reg.GetKey(rec.InternalID)

	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(domain.KeyRecord{}, "LastUsedAt")); diff != "" {
		t.Errorf("two reads of the same key diverged (-first +second):\n%s", diff)
	}

	first.WrappedMaterial[0] ^= 0xFF
	third, _ := reg.GetKey(rec.InternalID)
	if third.WrappedMaterial[0] == first.WrappedMaterial[0] {
		t.Error("mutating a returned KeyRecord's byte slice leaked into the registry's stored copy")
	}
}

func TestInsertRestoredIdempotent(t *testing.T) {
	reg := newTestRegistry(t)
	rec, _ := reg.CreateKey(1, "k", domain.AlgorithmAES128CBC)

	inserted := reg.InsertRestored(2, rec.PublicID, rec.Algorithm, rec.Status, rec.Name, rec.WrapIV, rec.WrappedMaterial)
	if inserted {
		t.Error("InsertRestored should be a no-op for an existing public_id")
	}

	fresh := reg.InsertRestored(2, "K-1-deadbeef", domain.AlgorithmAES128CBC, domain.KeyActive, "restored", rec.WrapIV, rec.WrappedMaterial)
	if !fresh {
		t.Error("InsertRestored should insert a key with a new public_id")
	}
}
