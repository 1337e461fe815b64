package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Validate performs comprehensive validation on the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateAuth(cfg); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}

	if err := validateLogging(cfg); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	return nil
}

func validateServer(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Basic validation - could be IPv4, IPv6, or hostname
	if strings.Contains(cfg.Server.Address, " ") {
		return fmt.Errorf("server.address contains invalid characters")
	}

	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	if cfg.Server.TLSSelfSigned && !cfg.TLSEnabled() {
		return fmt.Errorf("server.tls_self_signed requires server.tls_cert and server.tls_key paths")
	}
	for _, path := range []string{cfg.Server.TLSCert, cfg.Server.TLSKey} {
		// Self-signed pairs are generated at startup when missing.
		if path == "" || cfg.Server.TLSSelfSigned {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("TLS file not accessible: %w", err)
		}
	}

	if _, err := cfg.GetReadTimeout(); err != nil {
		return err
	}
	if _, err := cfg.GetWriteTimeout(); err != nil {
		return err
	}
	if _, err := cfg.GetShutdownTimeout(); err != nil {
		return err
	}
	if _, err := cfg.GetTrustedProxies(); err != nil {
		return err
	}

	return nil
}

func validateAuth(cfg *Config) error {
	if cfg.Auth.UsersFile == "" {
		return fmt.Errorf("auth.users_file is required")
	}

	if _, err := cfg.GetChallengeTTL(); err != nil {
		return err
	}
	if _, err := cfg.GetTokenTTL(); err != nil {
		return err
	}
	if _, err := cfg.GetFailureWindow(); err != nil {
		return err
	}

	bf := cfg.Auth.BruteForce
	if bf.MaxIPFailures < 1 {
		return fmt.Errorf("auth.brute_force.max_ip_failures must be positive")
	}
	if bf.MaxAccountFailures < 1 {
		return fmt.Errorf("auth.brute_force.max_account_failures must be positive")
	}
	if bf.MaxIPFailures < bf.MaxAccountFailures {
		return fmt.Errorf("auth.brute_force.max_ip_failures must not be below max_account_failures")
	}
	if bf.MaxLockoutSeconds < 1 || bf.MaxLockoutSeconds > 86400 {
		return fmt.Errorf("auth.brute_force.max_lockout_seconds must be between 1 and 86400")
	}

	if cfg.Auth.ChallengeRate.PerSecond <= 0 {
		return fmt.Errorf("auth.challenge_rate.per_second must be positive")
	}
	if cfg.Auth.ChallengeRate.Burst < 1 {
		return fmt.Errorf("auth.challenge_rate.burst must be at least 1")
	}

	return nil
}

func validateLogging(cfg *Config) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %s", strings.Join(validLevels, ", "))
	}

	validFormats := []string{"json", "human"}
	if !slices.Contains(validFormats, cfg.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %s", strings.Join(validFormats, ", "))
	}

	return nil
}
