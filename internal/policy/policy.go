// Package policy implements the core's authorization predicates. Guard is
// deliberately stateless — every predicate is a pure function of its
// arguments, with no internal mutable state.
package policy

import "github.com/opd-ai/privacycore/internal/domain"

// Guard evaluates the core's ownership and role predicates; key status is
// enforced by the key registry, not here. Every ownership or role denial is
// domain.ErrNotAuthorized — the guard never distinguishes the reason in its
// return value; surfacing a single opaque error regardless of cause avoids
// turning the authorization check itself into an information oracle.
// AuthorizeAuthenticated is separate and returns domain.ErrNotAuthenticated
// for an inactive actor.
type Guard struct{}

// New creates a Guard. It holds no state and is safe to share.
func New() *Guard {
	return &Guard{}
}

// AuthorizeRead checks whether actor may read key. Administrators may read
// any key; every other actor may only read keys they own.
func (g *Guard) AuthorizeRead(actor domain.Actor, key domain.KeyRecord) error {
	if actor.Role == domain.RoleAdministrator {
		return nil
	}
	if key.Owner != actor.ID {
		return domain.ErrNotAuthorized
	}
	return nil
}

// AuthorizeMutate checks whether actor may mutate key (revoke, mark
// expired). Limited to the key's owner or an administrator.
func (g *Guard) AuthorizeMutate(actor domain.Actor, key domain.KeyRecord) error {
	if actor.Role == domain.RoleAdministrator {
		return nil
	}
	if key.Owner != actor.ID {
		return domain.ErrNotAuthorized
	}
	return nil
}

// AuthorizeUse checks whether actor may use key (encrypt/decrypt). Subject
// to the same ownership rule as AuthorizeRead; the key's active/revoked
// status is enforced separately by the key registry at unwrap time.
func (g *Guard) AuthorizeUse(actor domain.Actor, key domain.KeyRecord) error {
	return g.AuthorizeRead(actor, key)
}

// AuthorizeAdmin checks whether actor may invoke an administrative
// endpoint (listing or modifying other actors).
func (g *Guard) AuthorizeAdmin(actor domain.Actor) error {
	if actor.Role != domain.RoleAdministrator {
		return domain.ErrNotAuthorized
	}
	return nil
}

// AuthorizeAuthenticated checks whether actor is currently permitted to act
// at all, independent of any specific resource.
func (g *Guard) AuthorizeAuthenticated(actor domain.Actor) error {
	if actor.Status != domain.ActorActive {
		return domain.ErrNotAuthenticated
	}
	return nil
}
