package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stowage/internal/mediastore"
	"stowage/internal/models"
	"stowage/internal/repository"
	"stowage/internal/store"
)

type harness struct {
	st    *store.Store
	media *mediastore.Dir
	pool  *Pool
}

func newHarness(t *testing.T, cfg Config) *harness {
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
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = 20 * time.Millisecond
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := New(st, repository.New(st, media), media, cfg, logger)
	t.Cleanup(func() {
		pool.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Wait(ctx)
	})
	return &harness{st: st, media: media, pool: pool}
}

func (h *harness) enqueue(t *testing.T, url string) string {
	t.Helper()
	job, err := h.st.EnqueueJob(context.Background(), store.NewID(), url)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job.ID
}

func (h *harness) waitTerminal(t *testing.T, id string) *models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.st.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job != nil && job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return nil
}

func TestPoolCompletesJob(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer remote.Close()

	h := newHarness(t, Config{})
	id := h.enqueue(t, remote.URL+"/x.json")
	if !h.pool.Start(context.Background()) {
		t.Fatal("expected first start to launch the loop")
	}

	job := h.waitTerminal(t, id)
	if job.Status != models.JobCompleted || job.FileID == "" || job.Error != "" {
		t.Fatalf("unexpected job: %+v", job)
	}
	file, err := h.st.GetFile(context.Background(), job.FileID)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if filepath.Ext(file.Filepath) != ".json" {
		t.Fatalf("expected .json extension, got %s", file.Filepath)
	}
	data, err := os.ReadFile(file.Filepath)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected stored content %q", data)
	}
}

func TestPoolFailsOnNon2xx(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer remote.Close()

	h := newHarness(t, Config{})
	id := h.enqueue(t, remote.URL+"/missing")
	h.pool.Start(context.Background())

	job := h.waitTerminal(t, id)
	if job.Status != models.JobFailed || job.FileID != "" {
		t.Fatalf("expected failed job, got %+v", job)
	}
	if !strings.Contains(job.Error, "404") {
		t.Fatalf("expected status in error, got %q", job.Error)
	}
}

func TestPoolFailsOnUnreachableURL(t *testing.T) {
	h := newHarness(t, Config{})
	id := h.enqueue(t, "http://127.0.0.1:1/unreachable")
	h.pool.Start(context.Background())

	job := h.waitTerminal(t, id)
	if job.Status != models.JobFailed || job.Error == "" {
		t.Fatalf("expected failed job with error, got %+v", job)
	}
}

func TestPoolDeduplicatesDownloads(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"same":1}`)
	}))
	defer remote.Close()

	h := newHarness(t, Config{MaxConcurrent: 1})
	first := h.enqueue(t, remote.URL+"/a")
	second := h.enqueue(t, remote.URL+"/b")
	h.pool.Start(context.Background())

	a := h.waitTerminal(t, first)
	b := h.waitTerminal(t, second)
	if a.Status != models.JobCompleted || b.Status != models.JobCompleted {
		t.Fatalf("expected both completed, got %s and %s", a.Status, b.Status)
	}
	if a.FileID != b.FileID {
		t.Fatalf("expected same file for identical content, got %s and %s", a.FileID, b.FileID)
	}
	count, _ := h.st.CountFiles(context.Background())
	if count != 1 {
		t.Fatalf("expected 1 file, got %d", count)
	}
}

func TestPoolStartIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{})
	if !h.pool.Start(context.Background()) {
		t.Fatal("expected first start to succeed")
	}
	if h.pool.Start(context.Background()) {
		t.Fatal("expected second start to be a no-op")
	}
	if !h.pool.Running() {
		t.Fatal("expected pool running")
	}

	h.pool.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.pool.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if h.pool.Running() {
		t.Fatal("expected pool stopped")
	}
	if !h.pool.Start(context.Background()) {
		t.Fatal("expected restart after stop to succeed")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		release  = make(chan struct{})
	)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	defer remote.Close()

	h := newHarness(t, Config{MaxConcurrent: 2})
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, h.enqueue(t, remote.URL+"/"+store.NewID()))
	}
	h.pool.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for inFlight.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if got := h.pool.Stats().Active; got != 2 {
		t.Fatalf("expected 2 active downloads, got %d", got)
	}
	close(release)

	for _, id := range ids {
		if job := h.waitTerminal(t, id); job.Status != models.JobCompleted {
			t.Fatalf("expected completed, got %+v", job)
		}
	}
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, saw %d", peak.Load())
	}
}

func TestPoolFetchTimeout(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer remote.Close()

	h := newHarness(t, Config{FetchTimeout: 50 * time.Millisecond})
	id := h.enqueue(t, remote.URL+"/slow")
	h.pool.Start(context.Background())

	job := h.waitTerminal(t, id)
	if job.Status != models.JobFailed {
		t.Fatalf("expected failed job, got %+v", job)
	}
	if !strings.Contains(job.Error, "timed out") {
		t.Fatalf("expected timeout error, got %q", job.Error)
	}
}

func TestPoolStopLetsInFlightFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"late":true}`)
	}))
	defer remote.Close()

	h := newHarness(t, Config{})
	id := h.enqueue(t, remote.URL+"/inflight")
	h.pool.Start(context.Background())

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never started")
	}
	h.pool.Stop()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.pool.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	job, _ := h.st.GetJob(context.Background(), id)
	if job.Status != models.JobCompleted {
		t.Fatalf("expected in-flight job to complete after stop, got %+v", job)
	}
}

type erroringQueue struct {
	calls atomic.Int32
}

func (q *erroringQueue) ClaimNextJob(context.Context) (*models.Job, error) {
	q.calls.Add(1)
	return nil, errors.New("database is locked")
}

func (q *erroringQueue) CompleteJob(context.Context, string, string) error { return nil }
func (q *erroringQueue) FailJob(context.Context, string, string) error     { return nil }

func TestPoolBacksOffOnClaimErrors(t *testing.T) {
	queue := &erroringQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := New(queue, nil, nil, Config{PollInterval: time.Millisecond, ErrorBackoff: time.Second}, logger)
	pool.Start(context.Background())

	time.Sleep(100 * time.Millisecond)
	pool.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if calls := queue.calls.Load(); calls != 1 {
		t.Fatalf("expected a single claim attempt during backoff, got %d", calls)
	}
}

func TestNotifyWakesIdleLoop(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"woken":true}`)
	}))
	defer remote.Close()

	h := newHarness(t, Config{PollInterval: time.Hour})
	h.pool.Start(context.Background())
	time.Sleep(50 * time.Millisecond)

	id := h.enqueue(t, remote.URL+"/wake")
	h.pool.Notify()

	if job := h.waitTerminal(t, id); job.Status != models.JobCompleted {
		t.Fatalf("expected completed job, got %+v", job)
	}
}
