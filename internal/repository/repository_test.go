package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"stowage/internal/mediastore"
	"stowage/internal/models"
	"stowage/internal/store"
)

func testRepo(t *testing.T) (*Repository, *store.Store, *mediastore.Dir) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	media, err := mediastore.New(t.TempDir())
	if err != nil {
		t.Fatalf("media dir: %v", err)
	}
	return New(st, media), st, media
}

func stage(t *testing.T, media *mediastore.Dir, content string) *mediastore.Staged {
	t.Helper()
	staged, err := media.Stage(context.Background(), store.NewID(), strings.NewReader(content), 0)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	t.Cleanup(func() { _ = staged.Discard() })
	return staged
}

func mediaEntries(t *testing.T, media *mediastore.Dir) []string {
	t.Helper()
	entries, err := os.ReadDir(media.Root())
	if err != nil {
		t.Fatalf("read media dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestStoreNewThenDuplicate(t *testing.T) {
	repo, st, media := testRepo(t)
	ctx := context.Background()

	first := stage(t, media, `{"a":1}`)
	res, err := repo.Store(ctx, first, "json")
	if err != nil {
		t.Fatalf("store first: %v", err)
	}
	if res.Duplicate {
		t.Fatal("first store should not be a duplicate")
	}
	if res.File.ID != first.ID || res.File.URL != "/files/"+first.ID {
		t.Fatalf("unexpected file: %+v", res.File)
	}
	if filepath.Base(res.File.Filepath) != first.ID+".json" {
		t.Fatalf("unexpected filepath %s", res.File.Filepath)
	}

	second := stage(t, media, `{"a":1}`)
	dup, err := repo.Store(ctx, second, "json")
	if err != nil {
		t.Fatalf("store second: %v", err)
	}
	if !dup.Duplicate || dup.File.ID != first.ID || dup.File.URL != res.File.URL {
		t.Fatalf("expected duplicate of first, got %+v", dup)
	}
	if _, err := os.Stat(second.Path); !os.IsNotExist(err) {
		t.Fatalf("expected duplicate staging removed, stat err=%v", err)
	}

	count, _ := st.CountFiles(ctx)
	if count != 1 {
		t.Fatalf("expected 1 file row, got %d", count)
	}
	if names := mediaEntries(t, media); len(names) != 1 {
		t.Fatalf("expected one stored file, got %v", names)
	}
}

func TestStoreDifferentContent(t *testing.T) {
	repo, st, media := testRepo(t)
	ctx := context.Background()

	if _, err := repo.Store(ctx, stage(t, media, "one"), "json"); err != nil {
		t.Fatalf("store one: %v", err)
	}
	if _, err := repo.Store(ctx, stage(t, media, "two"), "json"); err != nil {
		t.Fatalf("store two: %v", err)
	}
	count, _ := st.CountFiles(ctx)
	if count != 2 {
		t.Fatalf("expected 2 files, got %d", count)
	}
}

// racingFiles lets the first hash lookup miss so the insert conflicts.
type racingFiles struct {
	store.FileStore
	mu     sync.Mutex
	missed bool
}

func (r *racingFiles) GetFileByHash(ctx context.Context, hash string) (*models.File, error) {
	r.mu.Lock()
	if !r.missed {
		r.missed = true
		r.mu.Unlock()
		return nil, nil
	}
	r.mu.Unlock()
	return r.FileStore.GetFileByHash(ctx, hash)
}

func TestStoreInsertRaceReturnsWinner(t *testing.T) {
	_, st, media := testRepo(t)
	ctx := context.Background()

	winner := &models.File{ID: store.NewID(), Filepath: filepath.Join(media.Root(), "w.json"), URL: "/files/w", SizeBytes: 3}
	loser := stage(t, media, "abc")
	winner.Hash = loser.Digest
	if err := st.CreateFile(ctx, winner); err != nil {
		t.Fatalf("seed winner: %v", err)
	}

	repo := New(&racingFiles{FileStore: st}, media)
	res, err := repo.Store(ctx, loser, "json")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !res.Duplicate || res.File.ID != winner.ID {
		t.Fatalf("expected winner as duplicate, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(media.Root(), loser.ID+".json")); !os.IsNotExist(err) {
		t.Fatalf("expected loser file removed, stat err=%v", err)
	}
}

type failingFiles struct {
	store.FileStore
}

func (failingFiles) CreateFile(context.Context, *models.File) error {
	return errors.New("disk on fire")
}

func TestStoreInsertFailureRemovesFile(t *testing.T) {
	_, st, media := testRepo(t)
	repo := New(failingFiles{FileStore: st}, media)

	staged := stage(t, media, "payload")
	if _, err := repo.Store(context.Background(), staged, "json"); err == nil {
		t.Fatal("expected insert failure")
	}
	if names := mediaEntries(t, media); len(names) != 0 {
		t.Fatalf("expected no stored files after failure, got %v", names)
	}
}

func TestStoreConcurrentIdenticalContent(t *testing.T) {
	repo, st, media := testRepo(t)
	ctx := context.Background()

	const n = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]struct{}{}
		fresh   int
		errs    = make(chan error, n)
		stagedN = make([]*mediastore.Staged, n)
	)
	for i := 0; i < n; i++ {
		stagedN[i] = stage(t, media, "same bytes")
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(s *mediastore.Staged) {
			defer wg.Done()
			res, err := repo.Store(ctx, s, "json")
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			ids[res.File.ID] = struct{}{}
			if !res.Duplicate {
				fresh++
			}
			mu.Unlock()
		}(stagedN[i])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("store: %v", err)
	}

	if len(ids) != 1 || fresh != 1 {
		t.Fatalf("expected exactly one stored file, got ids=%v fresh=%d", ids, fresh)
	}
	count, _ := st.CountFiles(ctx)
	if count != 1 {
		t.Fatalf("expected 1 file row, got %d", count)
	}
	if names := mediaEntries(t, media); len(names) != 1 {
		t.Fatalf("expected one stored file on disk, got %v", names)
	}
}
