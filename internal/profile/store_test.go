package profile

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreMergesFields(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := store.Upsert(ctx, "u-1", Fields{Email: String("ada@example.com"), DisplayName: String("Ada"), LastLogin: Time(first)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := first.Add(time.Hour)
	if err := store.Upsert(ctx, "u-1", Fields{LastLogin: Time(second)}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	p, err := store.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Email != "ada@example.com" || p.DisplayName != "Ada" {
		t.Fatalf("unsupplied fields must persist, got %+v", p)
	}
	if !p.LastLogin.Equal(second) {
		t.Fatalf("expected last login %s, got %s", second, p.LastLogin)
	}
	if p.CreatedAt.After(p.UpdatedAt) {
		t.Fatalf("created_at after updated_at: %+v", p)
	}
}

func TestMemoryStoreOverwritesSuppliedFields(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, "u-1", Fields{DisplayName: String("Ada")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, "u-1", Fields{DisplayName: String("")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p, err := store.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.DisplayName != "" {
		t.Fatalf("supplied empty display name must overwrite, got %q", p.DisplayName)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	if _, err := NewMemoryStore().Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := NewMemoryStore().Upsert(context.Background(), "", Fields{}); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}
