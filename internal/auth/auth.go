// Package auth resolves opaque bearer tokens to actor identities
// before a connection is admitted to the registry.
package auth

import (
	"fmt"

	"github.com/akontos/sirena/internal/config"
	"github.com/akontos/sirena/internal/registry"
)

type Identity struct {
	ActorID string
	Role    registry.Role
}

type Resolver struct {
	tokens map[string]Identity
}

func NewResolver(cfg config.AuthConfig) (*Resolver, error) {
	tokens := make(map[string]Identity, len(cfg.Tokens))
	for _, entry := range cfg.Tokens {
		if entry.Token == "" || entry.ActorID == "" {
			return nil, fmt.Errorf("auth token entry for %q is incomplete", entry.ActorID)
		}
		role, ok := registry.ParseRole(entry.Role)
		if !ok {
			return nil, fmt.Errorf("unknown role %q for actor %s", entry.Role, entry.ActorID)
		}
		if _, dup := tokens[entry.Token]; dup {
			return nil, fmt.Errorf("duplicate auth token for actor %s", entry.ActorID)
		}
		tokens[entry.Token] = Identity{ActorID: entry.ActorID, Role: role}
	}
	return &Resolver{tokens: tokens}, nil
}

// Resolve maps a bearer token to an identity. The token table is
// immutable after construction, so reads need no locking.
func (r *Resolver) Resolve(token string) (Identity, bool) {
	id, ok := r.tokens[token]
	return id, ok
}
