// Package authz models the verified identities that accompany each bank
// operation. Authentication happens elsewhere; a Grant is trusted as given.
package authz

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a required grant is missing or does not
// match the account it must act for.
var ErrUnauthorized = errors.New("authz: unauthorized")

// Role is the capacity an identity acts in.
type Role string

const (
	RoleProducer Role = "producer"
	RoleOwner    Role = "owner"
)

// Grant is a verified identity acting in a role.
type Grant struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

// Producer returns a producer grant for subject.
func Producer(subject string) Grant { return Grant{Subject: subject, Role: RoleProducer} }

// Owner returns a facility owner grant for subject.
func Owner(subject string) Grant { return Grant{Subject: subject, Role: RoleOwner} }

func (g Grant) String() string {
	if g.Subject == "" {
		return string(g.Role) + ":<anonymous>"
	}
	return string(g.Role) + ":" + g.Subject
}

// RequireProducer checks that g is a producer grant with a subject.
func RequireProducer(g Grant) error {
	if g.Role != RoleProducer || g.Subject == "" {
		return fmt.Errorf("%w: %s is not a producer", ErrUnauthorized, g)
	}
	return nil
}

// RequireOwner checks that g is an owner grant for the account owner.
func RequireOwner(g Grant, owner string) error {
	if g.Role != RoleOwner || g.Subject == "" {
		return fmt.Errorf("%w: %s is not an owner", ErrUnauthorized, g)
	}
	if owner != "" && g.Subject != owner {
		return fmt.Errorf("%w: %s does not own the facility", ErrUnauthorized, g)
	}
	return nil
}
