package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testDBPath returns a temporary path for test databases
func testDBPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "SQLite", "barcodes.db")
}

// openTestStore opens a store with the schema in place.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(testDBPath(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	return s
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := testDBPath(t)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("database directory missing: %v", err)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("Open(\"\") should fail")
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Errorf("second EnsureSchema() failed: %v", err)
	}

	var count int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='barcodes'`).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	if count != 1 {
		t.Errorf("barcodes table count = %d, want 1", count)
	}
}

func TestInsertAndExists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.Exists(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if ok {
		t.Fatal("Exists() = true on empty store")
	}

	if err := s.Insert(ctx, "ABC123"); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	ok, err = s.Exists(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if !ok {
		t.Error("Exists() = false after Insert()")
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Insert(ctx, "dup"); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	err := s.Insert(ctx, "dup")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Insert() error = %v, want ErrDuplicate", err)
	}

	count, _ := s.Count(ctx)
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestInsert_CaseAndWhitespaceAreDistinct(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, code := range []string{"abc", "ABC", " abc", "abc "} {
		if err := s.Insert(ctx, code); err != nil {
			t.Fatalf("Insert(%q) failed: %v", code, err)
		}
	}

	count, _ := s.Count(ctx)
	if count != 4 {
		t.Errorf("Count() = %d, want 4", count)
	}
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, code := range []string{"a", "b", "c"} {
		if err := s.Insert(ctx, code); err != nil {
			t.Fatalf("Insert(%q) failed: %v", code, err)
		}
	}

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() failed: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d after DeleteAll(), want 0", count)
	}

	// The table survives and accepts codes again.
	if err := s.Insert(ctx, "a"); err != nil {
		t.Errorf("Insert() after DeleteAll() failed: %v", err)
	}
}

func TestRecreate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Insert(ctx, "ABC123"); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	if err := s.Recreate(ctx); err != nil {
		t.Fatalf("Recreate() failed: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d after Recreate(), want 0", count)
	}

	// Uniqueness is rebuilt with the table.
	if err := s.Insert(ctx, "ABC123"); err != nil {
		t.Fatalf("Insert() after Recreate() failed: %v", err)
	}
	if err := s.Insert(ctx, "ABC123"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate Insert() after Recreate() error = %v, want ErrDuplicate", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	want := []string{"first", "second", "third"}
	for _, code := range want {
		if err := s.Insert(ctx, code); err != nil {
			t.Fatalf("Insert(%q) failed: %v", code, err)
		}
	}

	got, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d codes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	limited, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List(2) failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d codes, want 2", len(limited))
	}
}

func TestList_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", got)
	}
}

func TestCheckpoint_PersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	if err := s.Insert(ctx, "persisted"); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := s.Checkpoint(ctx); err != nil {
		t.Fatalf("Checkpoint() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	ok, err := reopened.Exists(ctx, "persisted")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if !ok {
		t.Error("code lost across reopen")
	}
}

func TestClose_Twice(t *testing.T) {
	s, err := Open(testDBPath(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
