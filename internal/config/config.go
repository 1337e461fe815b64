// Package config provides configuration loading and validation for the mirror-authd service.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gitlab-mirror/mirrorauth/internal/auth"
)

// Default values applied to empty settings.
const (
	DefaultAddress         = "127.0.0.1"
	DefaultPort            = 8080
	DefaultReadTimeout     = "15s"
	DefaultWriteTimeout    = "15s"
	DefaultShutdownTimeout = "10s"
	DefaultChallengeTTL    = "30s"
	DefaultTokenTTL        = "720h"
	DefaultFailureWindow   = "10m"
	DefaultUsersFile       = "/etc/mirror-authd/users.yaml"
)

// Config represents the mirror-authd service configuration.
type Config struct {
	Server  ServerSettings  `yaml:"server"`
	Auth    AuthSettings    `yaml:"auth"`
	Logging LoggingSettings `yaml:"logging"`
}

// ServerSettings contains HTTP listener configuration.
type ServerSettings struct {
	Address         string `yaml:"address"`
	Port            int    `yaml:"port"`
	TLSCert         string `yaml:"tls_cert"`
	TLSKey          string `yaml:"tls_key"`
	TLSSelfSigned   bool   `yaml:"tls_self_signed"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	// TrustedProxies lists addresses or CIDR ranges allowed to set
	// X-Forwarded-For and X-Real-IP. Empty trusts no one.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// AuthSettings contains authentication policy.
type AuthSettings struct {
	UsersFile     string              `yaml:"users_file"`
	ChallengeTTL  string              `yaml:"challenge_ttl"`
	TokenTTL      string              `yaml:"token_ttl"`
	BruteForce    BruteForceSettings  `yaml:"brute_force"`
	ChallengeRate ChallengeRateLimits `yaml:"challenge_rate"`
}

// BruteForceSettings configures failed-login lockout.
type BruteForceSettings struct {
	Window             string `yaml:"window"`
	MaxIPFailures      int    `yaml:"max_ip_failures"`
	MaxAccountFailures int    `yaml:"max_account_failures"`
	MaxLockoutSeconds  int    `yaml:"max_lockout_seconds"`
}

// ChallengeRateLimits configures the per-IP challenge request budget.
type ChallengeRateLimits struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// LoggingSettings contains logging configuration.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every setting at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. Empty settings take their
// defaults and MIRROR_AUTHD_USERS_FILE overrides auth.users_file.
//
//nolint:gosec // G304: Config path is from command-line argument
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if usersFile := os.Getenv("MIRROR_AUTHD_USERS_FILE"); usersFile != "" {
		cfg.Auth.UsersFile = usersFile
	}

	cfg.applyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.Server.Address, DefaultAddress)
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	setDefault(&c.Server.ReadTimeout, DefaultReadTimeout)
	setDefault(&c.Server.WriteTimeout, DefaultWriteTimeout)
	setDefault(&c.Server.ShutdownTimeout, DefaultShutdownTimeout)

	setDefault(&c.Auth.UsersFile, DefaultUsersFile)
	setDefault(&c.Auth.ChallengeTTL, DefaultChallengeTTL)
	setDefault(&c.Auth.TokenTTL, DefaultTokenTTL)

	bf := &c.Auth.BruteForce
	setDefault(&bf.Window, DefaultFailureWindow)
	if bf.MaxIPFailures == 0 {
		bf.MaxIPFailures = auth.DefaultMaxIPFailures
	}
	if bf.MaxAccountFailures == 0 {
		bf.MaxAccountFailures = auth.DefaultMaxAccountFailures
	}
	if bf.MaxLockoutSeconds == 0 {
		bf.MaxLockoutSeconds = auth.DefaultMaxLockoutSeconds
	}

	if c.Auth.ChallengeRate.PerSecond == 0 {
		c.Auth.ChallengeRate.PerSecond = auth.DefaultChallengeRate
	}
	if c.Auth.ChallengeRate.Burst == 0 {
		c.Auth.ChallengeRate.Burst = auth.DefaultChallengeBurst
	}

	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "json")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// ListenAddress returns host:port for the HTTP listener.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// TLSEnabled reports whether both a certificate and a key are configured.
func (c *Config) TLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

// GetTrustedProxies parses server.trusted_proxies. A bare address becomes a
// single-host prefix.
func (c *Config) GetTrustedProxies() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.Server.TrustedProxies))
	for _, entry := range c.Server.TrustedProxies {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: invalid address or CIDR %q", entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// GetChallengeTTL parses and returns the challenge lifetime.
func (c *Config) GetChallengeTTL() (time.Duration, error) {
	d, err := parseDuration("auth.challenge_ttl", c.Auth.ChallengeTTL)
	if err != nil {
		return 0, err
	}
	if d < time.Second || d > 10*time.Minute {
		return 0, fmt.Errorf("auth.challenge_ttl must be between 1s and 10m")
	}
	return d, nil
}

// GetTokenTTL parses and returns the session token lifetime.
func (c *Config) GetTokenTTL() (time.Duration, error) {
	d, err := parseDuration("auth.token_ttl", c.Auth.TokenTTL)
	if err != nil {
		return 0, err
	}
	if d < auth.MinTokenTTL {
		return 0, fmt.Errorf("auth.token_ttl must be at least %s", auth.MinTokenTTL)
	}
	return d, nil
}

// GetFailureWindow parses and returns the brute-force counting window.
func (c *Config) GetFailureWindow() (time.Duration, error) {
	d, err := parseDuration("auth.brute_force.window", c.Auth.BruteForce.Window)
	if err != nil {
		return 0, err
	}
	if d < time.Minute {
		return 0, fmt.Errorf("auth.brute_force.window must be at least 1 minute")
	}
	return d, nil
}

// GetReadTimeout parses server.read_timeout.
func (c *Config) GetReadTimeout() (time.Duration, error) {
	return parsePositiveDuration("server.read_timeout", c.Server.ReadTimeout)
}

// GetWriteTimeout parses server.write_timeout.
func (c *Config) GetWriteTimeout() (time.Duration, error) {
	return parsePositiveDuration("server.write_timeout", c.Server.WriteTimeout)
}

// GetShutdownTimeout parses server.shutdown_timeout.
func (c *Config) GetShutdownTimeout() (time.Duration, error) {
	return parsePositiveDuration("server.shutdown_timeout", c.Server.ShutdownTimeout)
}

// AuthOptions converts the auth section into authenticator options.
// The configuration must have passed Validate.
func (c *Config) AuthOptions() auth.Options {
	challengeTTL, _ := c.GetChallengeTTL()
	tokenTTL, _ := c.GetTokenTTL()
	window, _ := c.GetFailureWindow()

	return auth.Options{
		ChallengeTTL: challengeTTL,
		TokenTTL:     tokenTTL,
		BruteForce: auth.BruteForceConfig{
			Window:             window,
			MaxIPFailures:      c.Auth.BruteForce.MaxIPFailures,
			MaxAccountFailures: c.Auth.BruteForce.MaxAccountFailures,
			MaxLockoutSeconds:  c.Auth.BruteForce.MaxLockoutSeconds,
		},
		ChallengeRate:  c.Auth.ChallengeRate.PerSecond,
		ChallengeBurst: c.Auth.ChallengeRate.Burst,
	}
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := parseDuration(key, value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
