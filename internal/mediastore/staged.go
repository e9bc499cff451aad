package mediastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Staged is content written to the temp area but not yet committed. Discard
// is safe to defer: after Commit it is a no-op.
type Staged struct {
	dir *Dir

	ID     string
	Path   string
	Digest string
	Size   int64
	Head   []byte

	mu        sync.Mutex
	settled   bool
	committed string
}

// Commit moves the staged bytes to root/{id}.{ext} and returns the final path.
func (s *Staged) Commit(ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		if s.committed != "" {
			return s.committed, nil
		}
		return "", fmt.Errorf("staged content %s was discarded", s.ID)
	}

	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if !extPattern.MatchString(ext) {
		return "", fmt.Errorf("invalid extension %q", ext)
	}
	dst := filepath.Join(s.dir.root, s.ID+"."+ext)
	if err := os.Rename(s.Path, dst); err != nil {
		return "", err
	}
	s.settled = true
	s.committed = dst
	return dst, nil
}

// Discard removes the staged bytes unless they were committed.
func (s *Staged) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return nil
	}
	s.settled = true
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Committed reports the final path, or "" when not committed.
func (s *Staged) Committed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}
