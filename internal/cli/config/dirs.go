// Package config provides configuration management for the mirrorctl CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "mirrorctl"

// UserConfigDir returns the OS-specific user configuration directory for mirrorctl.
// On Linux: ~/.config/mirrorctl
// On macOS: ~/Library/Application Support/mirrorctl
func UserConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

// UserCacheDir returns the OS-specific user cache directory for mirrorctl.
// Session tokens live here.
func UserCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(cacheDir, appName), nil
}

// EnsureDir creates dir and its parents with 0700 permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
