package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sharetube/watchroom/internal/domain"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewGuestID returns a fresh guest identity.
func NewGuestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return domain.GuestIDPrefix + ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// Store keeps the guest identity of this installation in a file so it survives
// restarts.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath is the guest id file under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}

	return filepath.Join(dir, "watchroom", "guest-id"), nil
}

func (s *Store) Path() string {
	return s.path
}

// GuestID returns the stored guest id, creating and storing one on first use.
func (s *Store) GuestID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		id := strings.TrimSpace(string(data))
		if domain.IsGuestID(id) {
			return id, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("failed to read guest id: %w", err)
	}

	id := NewGuestID()
	if err := s.write(id); err != nil {
		return "", err
	}

	return id, nil
}

func (s *Store) write(id string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".guest-id-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(id + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write guest id: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write guest id: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to store guest id: %w", err)
	}

	return nil
}
