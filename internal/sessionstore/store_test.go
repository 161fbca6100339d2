package sessionstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akontos/sirena/internal/config"
)

func TestMemoryGetSetDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "v" {
		t.Errorf("expected 'v', got %q", data)
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryTTL(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	current := time.Now()
	m.now = func() time.Time { return current }

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("expected key alive before expiry: %v", err)
	}

	current = current.Add(61 * time.Second)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after ttl, got %v", err)
	}
}

func TestMemoryIndex(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.AddToIndex(ctx, "active", "user-1")
	_ = m.AddToIndex(ctx, "active", "user-2")
	_ = m.AddToIndex(ctx, "active", "user-1") // idempotent

	members, err := m.IndexMembers(ctx, "active")
	if err != nil {
		t.Fatalf("index members: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}

	_ = m.RemoveFromIndex(ctx, "active", "user-1")
	_ = m.RemoveFromIndex(ctx, "active", "never-there")

	members, _ = m.IndexMembers(ctx, "active")
	if len(members) != 1 || members[0] != "user-2" {
		t.Errorf("expected only user-2, got %v", members)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(config.StoreConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", s)
	}

	if _, err := New(config.StoreConfig{Backend: "bogus"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestRedisStore(t *testing.T) {
	s, err := NewRedis("redis://localhost:6379/15", "sirena-test:")
	if err != nil {
		t.Skip("redis not available:", err)
	}
	defer s.Close()

	ctx := context.Background()
	defer s.Delete(ctx, "k")

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "v" {
		t.Errorf("expected 'v', got %q", data)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
