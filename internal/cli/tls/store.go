package tls

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/config"
)

const knownCertsFileName = "known_certs.yaml"

// CertificateEntry represents a pinned certificate fingerprint.
type CertificateEntry struct {
	Host        string    `yaml:"host"`
	Fingerprint string    `yaml:"fingerprint"`
	Subject     string    `yaml:"subject,omitempty"`
	AcceptedAt  time.Time `yaml:"accepted_at"`
}

// CertificateStore manages pinned certificate fingerprints keyed by host:port.
type CertificateStore struct {
	filePath string

	mu    sync.RWMutex
	certs map[string]CertificateEntry
}

type knownCertsFile struct {
	Certificates []CertificateEntry `yaml:"certificates"`
}

// NewCertificateStore opens the store in the user config directory.
func NewCertificateStore() (*CertificateStore, error) {
	configDir, err := config.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewCertificateStoreAt(configDir)
}

// NewCertificateStoreAt opens the store kept in dir, creating dir if needed.
func NewCertificateStoreAt(dir string) (*CertificateStore, error) {
	if err := config.EnsureDir(dir); err != nil {
		return nil, err
	}

	store := &CertificateStore{
		filePath: filepath.Join(dir, knownCertsFileName),
		certs:    make(map[string]CertificateEntry),
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Path returns the file backing the store.
func (s *CertificateStore) Path() string {
	return s.filePath
}

func (s *CertificateStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read known certificates file: %w", err)
	}

	var file knownCertsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse known certificates file: %w", err)
	}

	for _, entry := range file.Certificates {
		s.certs[normalizeHost(entry.Host)] = entry
	}
	return nil
}

// saveLocked writes the store sorted by host. Callers hold mu.
func (s *CertificateStore) saveLocked() error {
	certs := make([]CertificateEntry, 0, len(s.certs))
	for _, entry := range s.certs {
		certs = append(certs, entry)
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].Host < certs[j].Host })

	data, err := yaml.Marshal(&knownCertsFile{Certificates: certs})
	if err != nil {
		return fmt.Errorf("failed to marshal known certificates: %w", err)
	}

	// #nosec G306 - Certificate fingerprints are public information, 0644 is appropriate
	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write known certificates file: %w", err)
	}
	return nil
}

// IsKnown reports whether cert is the pinned certificate for host.
func (s *CertificateStore) IsKnown(host string, cert *x509.Certificate) bool {
	s.mu.RLock()
	entry, exists := s.certs[normalizeHost(host)]
	s.mu.RUnlock()

	return exists && FingerprintMatches(cert, entry.Fingerprint)
}

// Add pins cert for host, replacing any previous entry.
func (s *CertificateStore) Add(host string, cert *x509.Certificate) error {
	host = normalizeHost(host)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.certs[host] = CertificateEntry{
		Host:        host,
		Fingerprint: ComputeFingerprint(cert),
		Subject:     cert.Subject.String(),
		AcceptedAt:  time.Now().UTC(),
	}
	return s.saveLocked()
}

// Get returns the pinned entry for host, or nil.
func (s *CertificateStore) Get(host string) *CertificateEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, exists := s.certs[normalizeHost(host)]; exists {
		return &entry
	}
	return nil
}

// Remove unpins host. Removing an unknown host is not an error.
func (s *CertificateStore) Remove(host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.certs, normalizeHost(host))
	return s.saveLocked()
}

// VerifyFingerprint returns an error if a different certificate is pinned
// for host. An unknown host is not an error.
func (s *CertificateStore) VerifyFingerprint(host string, cert *x509.Certificate) error {
	entry := s.Get(host)
	if entry == nil {
		return nil
	}

	if !FingerprintMatches(cert, entry.Fingerprint) {
		return fmt.Errorf("certificate fingerprint mismatch for %s\n"+
			"Expected: %s\n"+
			"Got:      %s\n"+
			"This could indicate a man-in-the-middle attack or certificate rotation.\n"+
			"If you trust the new certificate, remove the old entry from: %s",
			host, entry.Fingerprint, ComputeFingerprint(cert), s.filePath)
	}
	return nil
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
