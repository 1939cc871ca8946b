package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_CreateGetUpdate(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	err := store.Create(ctx, Session{
		ID:         "s1",
		PromptName: "Hitesh",
		History:    History{{Role: RoleSystem, Content: "sys"}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.PromptName != "Hitesh" || len(got.History) != 1 {
		t.Fatalf("unexpected session: %+v", got)
	}

	history := append(got.History, Message{Role: RoleUser, Content: "hi"}, Message{Role: RoleAssistant, Content: "hello"})
	if err := store.Update(ctx, "s1", history); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err = store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.History) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.History))
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	_ = store.Create(ctx, Session{ID: "s1", History: History{{Role: RoleSystem, Content: "sys"}}})

	got, _ := store.Get(ctx, "s1")
	got.History[0].Content = "mutated"

	again, _ := store.Get(ctx, "s1")
	if again.History[0].Content != "sys" {
		t.Fatalf("store must not share history with callers, got %q", again.History[0].Content)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Update(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.Create(ctx, Session{ID: "s1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, Session{ID: "s1"}); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
	if err := store.Create(ctx, Session{}); err == nil {
		t.Fatalf("expected empty id to fail")
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_ = store.Create(ctx, Session{ID: "old"})
	now = now.Add(30 * time.Minute)
	_ = store.Create(ctx, Session{ID: "fresh"})

	if n := store.ClearExpired(ctx, now.Add(45*time.Minute)); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}

	now = now.Add(2 * time.Hour)
	if _, err := store.Get(ctx, "fresh"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected lazy expiry, got %v", err)
	}
}

func TestMemoryStore_ClearExpiredWithoutTTL(t *testing.T) {
	store := NewMemoryStore(0)
	_ = store.Create(context.Background(), Session{ID: "s1"})
	if n := store.ClearExpired(context.Background(), time.Now().Add(1000*time.Hour)); n != 0 {
		t.Fatalf("expected nothing removed, got %d", n)
	}
}
