package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"stowage/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testFile(id, hash string) *models.File {
	return &models.File{
		ID:        id,
		Filepath:  "/media/" + id + ".png",
		URL:       "/files/" + id,
		Hash:      hash,
		SizeBytes: 42,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty db path")
	}
}

func TestSqliteDSN(t *testing.T) {
	dsn, err := sqliteDSN("/tmp/stowage.db")
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	if !strings.HasPrefix(dsn, "file:///tmp/stowage.db?") {
		t.Fatalf("unexpected dsn prefix: %s", dsn)
	}
	for _, want := range []string{"_txlock=immediate", "busy_timeout%285000%29", "journal_mode%28WAL%29", "foreign_keys%281%29"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected dsn to contain %q, got %s", want, dsn)
		}
	}
}

func TestStoreInfo(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.CreateFile(ctx, testFile(NewID(), "h1")); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if _, err := st.EnqueueJob(ctx, NewID(), "http://example.com/a.png"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := st.EnqueueJob(ctx, NewID(), "http://example.com/b.png"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := st.ClaimNextJob(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	info, err := st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("store info: %v", err)
	}
	if info.SchemaVersion != 2 {
		t.Fatalf("expected schema version 2, got %d", info.SchemaVersion)
	}
	if info.TotalFiles != 1 {
		t.Fatalf("expected 1 file, got %d", info.TotalFiles)
	}
	if info.JobCounts["NotStarted"] != 1 || info.JobCounts["Running"] != 1 {
		t.Fatalf("unexpected job counts: %v", info.JobCounts)
	}
	if _, ok := info.JobCounts["Failed"]; !ok {
		t.Fatalf("expected every status in job counts, got %v", info.JobCounts)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := NewID()
	if err := st.CreateFile(ctx, testFile(id, "persist")); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	got, err := st.GetFile(ctx, id)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Hash != "persist" {
		t.Fatalf("expected persisted hash, got %q", got.Hash)
	}
}
