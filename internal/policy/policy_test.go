package policy

import (
	"testing"

	"github.com/opd-ai/privacycore/internal/domain"
)

func TestAuthorizeReadOwnerAllowed(t *testing.T) {
	g := New()
	actor := domain.Actor{ID: 1, Role: domain.RoleStandard, Status: domain.ActorActive}
	key := domain.KeyRecord{Owner: 1}

	if err := g.AuthorizeRead(actor, key); err != nil {
		t.Errorf("owner should be authorized to read, got %v", err)
	}
}

func TestAuthorizeReadNonOwnerDenied(t *testing.T) {
	g := New()
	actor := domain.Actor{ID: 2, Role: domain.RoleStandard, Status: domain.ActorActive}
	key := domain.KeyRecord{Owner: 1}

	if err := g.AuthorizeRead(actor, key); err != domain.ErrNotAuthorized {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestAuthorizeReadAdministratorUniversal(t *testing.T) {
	g := New()
	actor := domain.Actor{ID: 99, Role: domain.RoleAdministrator, Status: domain.ActorActive}
	key := domain.KeyRecord{Owner: 1}

	if err := g.AuthorizeRead(actor, key); err != nil {
		t.Errorf("administrator should read any key, got %v", err)
	}
}

func TestAuthorizeMutateNonOwnerDenied(t *testing.T) {
	g := New()
	actor := domain.Actor{ID: 2, Role: domain.RoleStandard, Status: domain.ActorActive}
	key := domain.KeyRecord{Owner: 1}

	if err := g.AuthorizeMutate(actor, key); err != domain.ErrNotAuthorized {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestAuthorizeAdminRequiresAdministratorRole(t *testing.T) {
	g := New()
	standard := domain.Actor{ID: 1, Role: domain.RoleStandard, Status: domain.ActorActive}
	manager := domain.Actor{ID: 2, Role: domain.RoleManager, Status: domain.ActorActive}
	admin := domain.Actor{ID: 3, Role: domain.RoleAdministrator, Status: domain.ActorActive}

	if err := g.AuthorizeAdmin(standard); err != domain.ErrNotAuthorized {
		t.Errorf("standard actor: expected ErrNotAuthorized, got %v", err)
	}
	if err := g.AuthorizeAdmin(manager); err != domain.ErrNotAuthorized {
		t.Errorf("manager actor: expected ErrNotAuthorized, got %v", err)
	}
	if err := g.AuthorizeAdmin(admin); err != nil {
		t.Errorf("administrator actor: expected nil, got %v", err)
	}
}

func TestAuthorizeAuthenticatedRejectsInactiveActor(t *testing.T) {
	g := New()
	actor := domain.Actor{ID: 1, Role: domain.RoleStandard, Status: domain.ActorInactive}

	if err := g.AuthorizeAuthenticated(actor); err != domain.ErrNotAuthenticated {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}
