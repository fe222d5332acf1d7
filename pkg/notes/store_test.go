package notes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "data", "notes.json"))
	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Len() != 0 {
		t.Fatalf("expected empty snapshot, got %d notes", snap.Len())
	}
}

func TestFileStore_SaveAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "notes.json")
	store := NewFileStore(path)

	snap := MustSnapshot(map[string]Note{
		"2024-03-15": {Text: "olá mundo", Important: true},
		"2024-03-16": {Text: ""},
	})
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := NewFileStore(path).Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	n, ok := reloaded.Get("2024-03-15")
	if !ok || n.Text != "olá mundo" || !n.Important {
		t.Fatalf("unexpected note after reload: %#v (found=%v)", n, ok)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("expected 2 notes, got %d", reloaded.Len())
	}
}

func TestFileStore_MalformedKeyFailsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	if err := os.WriteFile(path, []byte(`{"15/03/2024":{"text":"x"}}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := NewFileStore(path).Load(context.Background())
	var dateErr *InvalidDateError
	if !errors.As(err, &dateErr) {
		t.Fatalf("expected InvalidDateError, got %v", err)
	}
}

func TestSQLiteStore_SaveLoadUpsert(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state", "notes.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	snap := MustSnapshot(map[string]Note{
		"2024-03-15": {Text: "hello", Important: true},
		"2024-03-16": {Text: "world"},
	})
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	d, _ := ParseDate("2024-03-16")
	if err := store.Upsert(ctx, Note{Date: d, Text: "world!", Important: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store2.Close()

	loaded, err := store2.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 notes, got %d", loaded.Len())
	}
	n, _ := loaded.Get("2024-03-16")
	if n.Text != "world!" || !n.Important {
		t.Fatalf("upsert not applied: %#v", n)
	}
}

func TestSQLiteStore_EmptyDatabase(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Len() != 0 {
		t.Fatalf("expected empty snapshot, got %d", snap.Len())
	}
}
