package privacycore

import (
	"testing"

	"github.com/opd-ai/privacycore/internal/audit"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/envelope"
)

func newCore(t *testing.T) *Core {
	t.Helper()
	w, err := envelope.Generate()
	if err != nil {
		t.Fatalf("envelope.Generate() error: %v", err)
	}
	return New(w)
}

func standardActor(id int64) domain.Actor {
	return domain.Actor{ID: id, Role: domain.RoleStandard, Status: domain.ActorActive}
}

func TestEndToEndAESRoundTrip(t *testing.T) {
	core := newCore(t)
	actor := standardActor(1)

	rec, err := core.CreateKey(actor, "notes", domain.AlgorithmAES256CBC)
	if err != nil {
		t.Fatalf("CreateKey() error: %v", err)
	}
	if rec.WrappedMaterial != nil || rec.WrapIV != nil {
		t.Error("CreateKey() result must be redacted")
	}

	plaintext := []byte("sensitive note contents")
	env, err := core.Encrypt(actor, rec.InternalID, plaintext, "notes.txt")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	got, err := core.Decrypt(actor, rec.InternalID, env, "notes.txt")
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestEndToEndRSARejectsOverlargeInput(t *testing.T) {
	core := newCore(t)
	actor := standardActor(1)
	rec, _ := core.CreateKey(actor, "rsa", domain.AlgorithmRSA2048)

	big := make([]byte, 500)
	if _, err := core.Encrypt(actor, rec.InternalID, big, "r"); err != domain.ErrInputTooLarge {
		t.Errorf("expected ErrInputTooLarge, got %v", err)
	}
}

func TestEndToEndECCRoundTrip(t *testing.T) {
	core := newCore(t)
	actor := standardActor(1)
	rec, _ := core.CreateKey(actor, "ecc", domain.AlgorithmECCP256)

	plaintext := []byte("hybrid payload")
	env, err := core.Encrypt(actor, rec.InternalID, plaintext, "e")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	got, err := core.Decrypt(actor, rec.InternalID, env, "e")
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestRevokeThenEncryptFails(t *testing.T) {
	core := newCore(t)
	actor := standardActor(1)
	rec, _ := core.CreateKey(actor, "doc", domain.AlgorithmAES128CBC)

	if err := core.RevokeKey(actor, rec.InternalID); err != nil {
		t.Fatalf("RevokeKey() error: %v", err)
	}
	if _, err := core.Encrypt(actor, rec.InternalID, []byte("x"), "d"); err != domain.ErrKeyNotActive {
		t.Errorf("expected ErrKeyNotActive, got %v", err)
	}
}

func TestNonOwnerCannotRevokeOrUseKey(t *testing.T) {
	core := newCore(t)
	owner := standardActor(1)
	stranger := standardActor(2)
	rec, _ := core.CreateKey(owner, "doc", domain.AlgorithmAES128CBC)

	if err := core.RevokeKey(stranger, rec.InternalID); err != domain.ErrNotAuthorized {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := core.Encrypt(stranger, rec.InternalID, []byte("x"), "d"); err != domain.ErrNotAuthorized {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestBackupCycleRestoresIntoFreshAccount(t *testing.T) {
	w, err := envelope.Generate()
	if err != nil {
		t.Fatalf("envelope.Generate() error: %v", err)
	}
	core := New(w)
	owner := standardActor(1)
	newOwner := standardActor(2)

	core.CreateKey(owner, "a", domain.AlgorithmAES128CBC)
	core.CreateKey(owner, "b", domain.AlgorithmRSA2048)

	artifact, err := core.ExportBackup(owner)
	if err != nil {
		t.Fatalf("ExportBackup() error: %v", err)
	}

	// Restore into a second Core that shares the master key and does not yet
	// hold the exported public ids.
	restoreCore := New(w)
	restored, err := restoreCore.ImportBackup(newOwner, artifact)
	if err != nil {
		t.Fatalf("ImportBackup() error: %v", err)
	}
	if restored != 2 {
		t.Errorf("restored = %d, want 2", restored)
	}
	if len(restoreCore.ListKeys(newOwner)) != 2 {
		t.Errorf("ListKeys(newOwner) returned %d keys, want 2", len(restoreCore.ListKeys(newOwner)))
	}
}

func TestQueryAuditConfinesNonAdministratorToOwnRecords(t *testing.T) {
	core := newCore(t)
	owner := standardActor(1)
	stranger := standardActor(2)

	core.CreateKey(owner, "doc", domain.AlgorithmAES128CBC)
	core.CreateKey(stranger, "doc", domain.AlgorithmAES128CBC)

	records, count := core.QueryAudit(stranger, audit.Filters{}, 0, 0)
	if count != len(records) {
		t.Fatalf("count = %d, len(records) = %d, want equal", count, len(records))
	}
	for _, r := range records {
		if r.Actor == nil || *r.Actor != stranger.ID {
			t.Errorf("QueryAudit(stranger) returned a record for actor %v, want only %d", r.Actor, stranger.ID)
		}
	}

	admin := domain.Actor{ID: 99, Role: domain.RoleAdministrator, Status: domain.ActorActive}
	allRecords, allCount := core.QueryAudit(admin, audit.Filters{}, 0, 0)
	if allCount <= count {
		t.Errorf("administrator query returned %d records, want more than the %d scoped to stranger alone", allCount, count)
	}
	if len(allRecords) != allCount {
		t.Fatalf("len(allRecords) = %d, allCount = %d, want equal", len(allRecords), allCount)
	}
}

func TestHighVolumeEncryptionTriggersSecurityAlert(t *testing.T) {
	core := newCore(t)
	actor := standardActor(1)
	rec, err := core.CreateKey(actor, "doc", domain.AlgorithmAES128CBC)
	if err != nil {
		t.Fatalf("CreateKey() error: %v", err)
	}

	for i := 0; i < 25; i++ {
		if _, err := core.Encrypt(actor, rec.InternalID, []byte("x"), "d"); err != nil {
			t.Fatalf("Encrypt() iteration %d error: %v", i, err)
		}
	}

	core.detector.AnalyzeAndRecord(actor.ID)

	alerts := core.SecurityAlerts(actor)
	found := false
	for _, a := range alerts {
		if a.Details["type"] == "high_volume" {
			found = true
		}
	}
	if !found {
		t.Error("expected a high_volume security alert after 25 encryptions within the window")
	}
}
