// Package session persists mirrorctl session tokens between invocations.
package session

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/config"
)

const tokenFileMode = 0o600

// Store manages session token files in the OS cache directory,
// one file per server.
type Store struct {
	dir string
}

// NewStore creates a store in the user cache directory.
func NewStore() (*Store, error) {
	cacheDir, err := config.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(cacheDir)
}

// NewStoreAt creates a store rooted at dir.
func NewStoreAt(dir string) (*Store, error) {
	if err := config.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Save saves the session token for server with owner-only permissions.
func (s *Store) Save(server, token string) error {
	if err := os.WriteFile(s.tokenFilename(server), []byte(token), tokenFileMode); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	return nil
}

// Load returns the session token for server, or "" if none is stored.
func (s *Store) Load(server string) (string, error) {
	data, err := os.ReadFile(s.tokenFilename(server)) // #nosec G304 - filename is a hash of the server URL
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Delete removes the session token for server. A missing token is not an error.
func (s *Store) Delete(server string) error {
	if err := os.Remove(s.tokenFilename(server)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// Slot binds the store to one server.
func (s *Store) Slot(server string) *Slot {
	return &Slot{store: s, server: normalize(server)}
}

// tokenFilename is session-<first 8 bytes of sha256(server) in hex>.token.
func (s *Store) tokenFilename(server string) string {
	hash := sha256.Sum256([]byte(normalize(server)))
	return filepath.Join(s.dir, fmt.Sprintf("session-%x.token", hash[:8]))
}

func normalize(server string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(server)), "/")
}

// Slot is the token storage of a single server.
type Slot struct {
	store  *Store
	server string
}

// Load returns the stored token or "".
func (s *Slot) Load() (string, error) { return s.store.Load(s.server) }

// Save stores token.
func (s *Slot) Save(token string) error { return s.store.Save(s.server, token) }

// Delete removes the stored token.
func (s *Slot) Delete() error { return s.store.Delete(s.server) }
