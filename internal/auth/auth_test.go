package auth

import (
	"testing"

	"github.com/akontos/sirena/internal/config"
	"github.com/akontos/sirena/internal/registry"
)

func TestResolve(t *testing.T) {
	r, err := NewResolver(config.AuthConfig{
		Tokens: []config.TokenEntry{
			{Token: "tok-user", ActorID: "user-1", Role: "registered_user"},
			{Token: "tok-agent", ActorID: "agent-1", Role: "field_agent"},
		},
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	id, ok := r.Resolve("tok-agent")
	if !ok {
		t.Fatal("expected token to resolve")
	}
	if id.ActorID != "agent-1" || id.Role != registry.RoleFieldAgent {
		t.Errorf("unexpected identity: %+v", id)
	}

	if _, ok := r.Resolve("bogus"); ok {
		t.Error("expected unknown token to be rejected")
	}
	if _, ok := r.Resolve(""); ok {
		t.Error("expected empty token to be rejected")
	}
}

func TestNewResolverRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name  string
		entry config.TokenEntry
	}{
		{"missing token", config.TokenEntry{ActorID: "user-1", Role: "admin"}},
		{"missing actor", config.TokenEntry{Token: "tok", Role: "admin"}},
		{"unknown role", config.TokenEntry{Token: "tok", ActorID: "user-1", Role: "overlord"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewResolver(config.AuthConfig{Tokens: []config.TokenEntry{tc.entry}}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewResolverRejectsDuplicateTokens(t *testing.T) {
	_, err := NewResolver(config.AuthConfig{
		Tokens: []config.TokenEntry{
			{Token: "tok", ActorID: "user-1", Role: "admin"},
			{Token: "tok", ActorID: "user-2", Role: "admin"},
		},
	})
	if err == nil {
		t.Error("expected duplicate token error")
	}
}
