package state

import (
	"context"
	"errors"
	"testing"

	refdatax "github.com/piyachat/chainflow/refdata"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	sctx := NewContext("admin", refdatax.Snapshot{})
	sctx.AppendHistory(RoleUser, "where are my trucks")
	sctx.AppendHistory(RoleAssistant, "all five are en route")
	sctx.NextAgent = CapFleetMonitor

	if err := store.Save(ctx, "session_1", sctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, "session_1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.ConversationHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(loaded.ConversationHistory))
	}
	if loaded.NextAgent != CapFleetMonitor {
		t.Fatalf("NextAgent = %s, want fleet_monitor", loaded.NextAgent)
	}

	// The store hands out copies: mutating the loaded context must not
	// change the stored one.
	loaded.AppendHistory(RoleUser, "extra")
	reloaded, err := store.Load(ctx, "session_1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(reloaded.ConversationHistory) != 2 {
		t.Fatalf("stored context was mutated through a loaded copy")
	}
}

func TestMemoryStoreMissingSession(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStoreValidation(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "  "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession on blank id, got %v", err)
	}
	if err := store.Save(ctx, "", NewContext("admin", refdatax.Snapshot{})); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession on blank id, got %v", err)
	}
	if err := store.Save(ctx, "session_1", nil); !errors.Is(err, ErrNilContext) {
		t.Fatalf("expected ErrNilContext, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "session_1", NewContext("admin", refdatax.Snapshot{})); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
	if err := store.Delete(ctx, "session_1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "session_1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}
