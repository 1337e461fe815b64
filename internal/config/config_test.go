//nolint:gosec // G306: Test files use standard permissions
package config_test

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlab-mirror/mirrorauth/internal/auth"
	"github.com/gitlab-mirror/mirrorauth/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")
	require.NoError(t, os.WriteFile(certFile, []byte("cert"), 0644))
	require.NoError(t, os.WriteFile(keyFile, []byte("key"), 0600))

	configYAML := `
server:
  address: "0.0.0.0"
  port: 8443
  tls_cert: "` + certFile + `"
  tls_key: "` + keyFile + `"
  shutdown_timeout: "5s"

auth:
  users_file: "/var/lib/mirror-authd/users.yaml"
  challenge_ttl: "45s"
  token_ttl: "24h"
  brute_force:
    window: "15m"
    max_ip_failures: 30
    max_account_failures: 5
    max_lockout_seconds: 600
  challenge_rate:
    per_second: 2
    burst: 10

logging:
  level: "debug"
  format: "human"
`

	cfg, err := config.Load(writeConfig(t, configYAML))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0:8443", cfg.ListenAddress())
	assert.True(t, cfg.TLSEnabled())
	assert.Equal(t, "/var/lib/mirror-authd/users.yaml", cfg.Auth.UsersFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "human", cfg.Logging.Format)

	opts := cfg.AuthOptions()
	assert.Equal(t, 45*time.Second, opts.ChallengeTTL)
	assert.Equal(t, 24*time.Hour, opts.TokenTTL)
	assert.Equal(t, auth.BruteForceConfig{
		Window:             15 * time.Minute,
		MaxIPFailures:      30,
		MaxAccountFailures: 5,
		MaxLockoutSeconds:  600,
	}, opts.BruteForce)
	assert.Equal(t, 2.0, opts.ChallengeRate)
	assert.Equal(t, 10, opts.ChallengeBurst)

	shutdown, err := cfg.GetShutdownTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, shutdown)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "logging:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddress())
	assert.False(t, cfg.TLSEnabled())
	assert.Equal(t, config.DefaultUsersFile, cfg.Auth.UsersFile)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	opts := cfg.AuthOptions()
	assert.Equal(t, 30*time.Second, opts.ChallengeTTL)
	assert.Equal(t, 30*24*time.Hour, opts.TokenTTL)
	assert.Equal(t, auth.DefaultBruteForceConfig(), opts.BruteForce)
}

func TestValidate_SelfSignedSkipsFileCheck(t *testing.T) {
	cfg := config.Default()
	cfg.Server.TLSCert = "/nonexistent/server.crt"
	cfg.Server.TLSKey = "/nonexistent/server.key"
	cfg.Server.TLSSelfSigned = true

	assert.NoError(t, config.Validate(cfg))
}

func TestGetTrustedProxies(t *testing.T) {
	cfg := config.Default()
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.7", "::1", "172.16.5.9/12"}

	prefixes, err := cfg.GetTrustedProxies()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.7/32"),
		netip.MustParsePrefix("::1/128"),
		netip.MustParsePrefix("172.16.0.0/12"),
	}, prefixes)
}

func TestGetTrustedProxies_DefaultTrustsNoOne(t *testing.T) {
	prefixes, err := config.Default().GetTrustedProxies()
	require.NoError(t, err)
	assert.Empty(t, prefixes)
}

func TestDefault_Valid(t *testing.T) {
	require.NoError(t, config.Validate(config.Default()))
}

func TestLoad_UsersFileEnvOverride(t *testing.T) {
	t.Setenv("MIRROR_AUTHD_USERS_FILE", "/tmp/users.yaml")

	cfg, err := config.Load(writeConfig(t, "auth:\n  users_file: /etc/other.yaml\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/users.yaml", cfg.Auth.UsersFile)
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "invalid: [yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := config.Load("/nonexistent/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"port too high", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative port", func(c *config.Config) { c.Server.Port = -1 }, "server.port"},
		{"address with space", func(c *config.Config) { c.Server.Address = "bad host" }, "server.address"},
		{"cert without key", func(c *config.Config) { c.Server.TLSCert = "/tmp/x.crt" }, "set together"},
		{"missing tls files", func(c *config.Config) {
			c.Server.TLSCert = "/nonexistent/x.crt"
			c.Server.TLSKey = "/nonexistent/x.key"
		}, "TLS file"},
		{"self-signed without paths", func(c *config.Config) { c.Server.TLSSelfSigned = true }, "tls_self_signed"},
		{"bad trusted proxy", func(c *config.Config) { c.Server.TrustedProxies = []string{"proxy.local"} }, "trusted_proxies"},
		{"bad read timeout", func(c *config.Config) { c.Server.ReadTimeout = "soon" }, "server.read_timeout"},
		{"zero shutdown timeout", func(c *config.Config) { c.Server.ShutdownTimeout = "0s" }, "server.shutdown_timeout"},
		{"empty users file", func(c *config.Config) { c.Auth.UsersFile = "" }, "users_file"},
		{"challenge ttl too short", func(c *config.Config) { c.Auth.ChallengeTTL = "100ms" }, "challenge_ttl"},
		{"challenge ttl too long", func(c *config.Config) { c.Auth.ChallengeTTL = "1h" }, "challenge_ttl"},
		{"token ttl too short", func(c *config.Config) { c.Auth.TokenTTL = "10s" }, "token_ttl"},
		{"window too short", func(c *config.Config) { c.Auth.BruteForce.Window = "30s" }, "window"},
		{"negative account failures", func(c *config.Config) { c.Auth.BruteForce.MaxAccountFailures = -1 }, "max_account_failures"},
		{"ip below account", func(c *config.Config) { c.Auth.BruteForce.MaxIPFailures = 5 }, "max_ip_failures"},
		{"lockout too long", func(c *config.Config) { c.Auth.BruteForce.MaxLockoutSeconds = 100000 }, "max_lockout_seconds"},
		{"negative rate", func(c *config.Config) { c.Auth.ChallengeRate.PerSecond = -1 }, "per_second"},
		{"negative burst", func(c *config.Config) { c.Auth.ChallengeRate.Burst = -1 }, "burst"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			err := config.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
