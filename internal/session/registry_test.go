package session

import (
	"testing"
)

func TestGetCreatesLazilyAndCaches(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)
	if registry.Len() != 0 {
		t.Fatalf("expected an empty registry, got %d sessions", registry.Len())
	}

	first := registry.Get("thread-1")
	if first == nil {
		t.Fatal("expected a filesystem instance")
	}
	if first.SessionID() != "thread-1" {
		t.Fatalf("expected the filesystem to carry its thread id, got %q", first.SessionID())
	}

	if registry.Get("thread-1") != first {
		t.Fatal("expected the same instance on a second access")
	}
	if registry.Get("thread-2") == first {
		t.Fatal("distinct threads must not share a filesystem")
	}
	if registry.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", registry.Len())
	}
}

func TestGetDefaultSession(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)

	fs := registry.Get("")
	if fs.SessionID() == "" {
		t.Fatal("the default session must carry a generated id")
	}
	if registry.Get("") != fs {
		t.Fatal("an empty thread id must always resolve to the same default session")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)
	fs := registry.Get("thread-1")
	if _, err := fs.Write("/f.txt", "x"); err != nil {
		t.Fatalf("write: %v", err)
	}

	registry.Reset("thread-1")
	if registry.Len() != 0 {
		t.Fatalf("expected the session to be gone, got %d", registry.Len())
	}

	fresh := registry.Get("thread-1")
	if fresh == fs {
		t.Fatal("expected a fresh instance after reset")
	}
	if fresh.Len() != 0 {
		t.Fatalf("expected an empty filesystem after reset, got %d files", fresh.Len())
	}
}
