package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gitlab-mirror/mirrorauth/internal/auth"
	"github.com/gitlab-mirror/mirrorauth/internal/config"
	tlspkg "github.com/gitlab-mirror/mirrorauth/internal/tls"
)

const (
	// DefaultAdminUsername is the account created by init.
	DefaultAdminUsername = "admin"
	// generatedPasswordBytes is the entropy of the generated admin password.
	generatedPasswordBytes = 18
)

// runInit prepares a host for mirror-authd: a users file with one admin
// account and, if tls_self_signed is set, a certificate. Existing files are
// left alone, so running it twice is safe.
func runInit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	admin := fs.String("admin", DefaultAdminUsername, "username of the initial account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadOrDefault(*configPath)
	if err != nil {
		return err
	}

	if err := ensureUsersFile(cfg.Auth.UsersFile, *admin, out); err != nil {
		return fmt.Errorf("users file generation failed: %w", err)
	}

	if cfg.Server.TLSSelfSigned {
		if err := ensureTLSCertificate(cfg, out); err != nil {
			return fmt.Errorf("TLS certificate generation failed: %w", err)
		}
	}

	fmt.Fprintln(out, "Initialization completed successfully")
	return nil
}

// loadOrDefault loads path, or the defaults if path does not exist.
func loadOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func ensureUsersFile(path, username string, out io.Writer) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Users file already exists at %s\n", path)
		return nil
	}

	password, err := generatePassword()
	if err != nil {
		return err
	}

	user, err := auth.NewUser(username, "Administrator", password, 0)
	if err != nil {
		return err
	}
	data, err := auth.MarshalUsers(user)
	if err != nil {
		return fmt.Errorf("failed to encode users file: %w", err)
	}

	//nolint:gosec // G301: the directory holds no secrets itself
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create users directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}

	fmt.Fprintf(out, "Created users file at %s\n", path)
	fmt.Fprintf(out, "Initial account: %s\n", username)
	fmt.Fprintf(out, "Initial password: %s\n", password)
	fmt.Fprintln(out, "The password is not stored and will not be shown again.")
	return nil
}

func ensureTLSCertificate(cfg *config.Config, out io.Writer) error {
	created, err := tlspkg.EnsureCertificate(cfg.Server.TLSCert, cfg.Server.TLSKey, cfg.Server.Address)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(out, "TLS certificate already exists at %s\n", cfg.Server.TLSCert)
		return nil
	}
	fmt.Fprintf(out, "Generated self-signed TLS certificate at %s\n", cfg.Server.TLSCert)
	return nil
}

func generatePassword() (string, error) {
	buf := make([]byte, generatedPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
