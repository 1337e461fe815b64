package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gitlab-mirror/mirrorauth/pkg/scram"
)

// ErrUserNotFound is returned when a username is not in the user store.
var ErrUserNotFound = errors.New("user not found")

// User is an account as stored on disk. The password itself is never kept,
// only the salt and the SCRAM stored key derived from it.
type User struct {
	Username    string `yaml:"username" json:"username"`
	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Salt        string `yaml:"salt" json:"salt"`
	Iterations  int    `yaml:"iterations" json:"iterations"`
	StoredKey   string `yaml:"stored_key" json:"stored_key"`
	Disabled    bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Enabled reports whether the account may log in.
func (u *User) Enabled() bool {
	return !u.Disabled
}

// Validate checks that the record is usable for verification.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.Salt == "" {
		return fmt.Errorf("user %q: salt is required", u.Username)
	}
	if _, err := hex.DecodeString(u.Salt); err != nil {
		return fmt.Errorf("user %q: salt must be hex: %w", u.Username, err)
	}
	if u.Iterations <= 0 {
		return fmt.Errorf("user %q: iterations must be positive", u.Username)
	}
	key, err := hex.DecodeString(u.StoredKey)
	if err != nil || len(key) != scram.KeyLength {
		return fmt.Errorf("user %q: stored_key must be %d hex-encoded bytes", u.Username, scram.KeyLength)
	}
	return nil
}

// NewUser creates a user record for password with a fresh random salt.
// A non-positive iterations selects scram.DefaultIterations.
func NewUser(username, displayName, password string, iterations int) (User, error) {
	if username == "" {
		return User{}, fmt.Errorf("username is required")
	}
	if password == "" {
		return User{}, fmt.Errorf("password is required")
	}
	if iterations <= 0 {
		iterations = scram.DefaultIterations
	}

	salt, err := scram.GenerateSalt()
	if err != nil {
		return User{}, err
	}
	storedKey, err := scram.ComputeStoredKey(password, salt, iterations)
	if err != nil {
		return User{}, fmt.Errorf("failed to derive stored key: %w", err)
	}

	return User{
		Username:    username,
		DisplayName: displayName,
		Salt:        salt,
		Iterations:  iterations,
		StoredKey:   storedKey,
	}, nil
}

// usersFile is the on-disk layout of the users file.
type usersFile struct {
	Users []User `yaml:"users"`
}

// UserStore is the in-memory set of accounts.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewUserStore builds a store from records. Duplicate or invalid records are rejected.
func NewUserStore(users ...User) (*UserStore, error) {
	s := &UserStore{}
	if err := s.replace(users); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadUsers reads a YAML users file.
func LoadUsers(path string) (*UserStore, error) {
	users, err := readUsersFile(path)
	if err != nil {
		return nil, err
	}
	return NewUserStore(users...)
}

// Reload replaces the store contents from path. On error the current
// contents are kept.
func (s *UserStore) Reload(path string) error {
	users, err := readUsersFile(path)
	if err != nil {
		return err
	}
	return s.replace(users)
}

// Lookup returns the user record for username.
func (s *UserStore) Lookup(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// Count returns the number of accounts.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *UserStore) replace(users []User) error {
	m := make(map[string]User, len(users))
	for i := range users {
		if err := users[i].Validate(); err != nil {
			return err
		}
		if _, dup := m[users[i].Username]; dup {
			return fmt.Errorf("duplicate user %q", users[i].Username)
		}
		m[users[i].Username] = users[i]
	}

	s.mu.Lock()
	s.users = m
	s.mu.Unlock()
	return nil
}

func readUsersFile(path string) ([]User, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	return f.Users, nil
}

// MarshalUsers renders records in the users file layout.
func MarshalUsers(users ...User) ([]byte, error) {
	return yaml.Marshal(usersFile{Users: users})
}
