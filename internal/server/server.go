package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"stowage/internal/mediastore"
	"stowage/internal/repository"
	"stowage/internal/store"
	"stowage/internal/worker"
)

const (
	allowRemoteEnvKey     = "STOWAGE_ALLOW_REMOTE"
	readHeaderTimeout     = 5 * time.Second
	readTimeout           = 5 * time.Minute
	writeTimeout          = 5 * time.Minute
	idleTimeout           = 60 * time.Second
	shutdownTimeout       = 15 * time.Second
	defaultMaxUploadBytes = 100 << 20 // 100 MiB
)

// Store is the persistence the HTTP layer needs.
type Store interface {
	store.FileStore
	store.JobStore
	StoreInfo(ctx context.Context) (*store.Info, error)
}

// Options configures optional server behavior.
type Options struct {
	DBPath         string
	MaxUploadBytes int64
}

// Server wraps HTTP handlers for the stowage API.
type Server struct {
	addr    string
	store   Store
	media   *mediastore.Dir
	pool    *worker.Pool
	uploads *UploadService
	jobs    *JobService
	logger  *slog.Logger
	dbPath  string
}

// New creates a new server instance. pool may be nil when downloads are disabled.
func New(addr string, st Store, media *mediastore.Dir, pool *worker.Pool, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	var notifier Notifier
	if pool != nil {
		notifier = pool
	}

	return &Server{
		addr:    addr,
		store:   st,
		media:   media,
		pool:    pool,
		uploads: NewUploadService(media, repository.New(st, media), maxUpload),
		jobs:    NewJobService(st, notifier),
		logger:  logger,
		dbPath:  opts.DBPath,
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(withMetrics(s.routes()))
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
