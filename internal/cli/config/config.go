package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimeout = 30 * time.Second
	configFileName = "config.yaml"
	envServer      = "MIRRORCTL_SERVER"
	envCACert      = "MIRRORCTL_CA_CERT"
	envTimeout     = "MIRRORCTL_TIMEOUT"

	// apiPrefix is appended to the server URL when it carries no path.
	apiPrefix = "/api"
)

// Config holds the configuration for the mirrorctl CLI.
type Config struct {
	Server  string        `yaml:"server"`
	CACert  string        `yaml:"ca_cert,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Load loads configuration from file, environment variables, and applies defaults.
// Precedence order (highest to lowest):
// 1. Environment variables
// 2. Config file
// 3. Defaults
//
// Command-line flags are applied by individual commands after calling Load().
func Load() (*Config, error) {
	cfg := &Config{
		Timeout: defaultTimeout,
	}

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the location of the config file.
func Path() (string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func (c *Config) loadFromFile() error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath) // #nosec G304 - path is in the user config directory
	if err != nil {
		return err
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if fileConfig.Server != "" {
		c.Server = fileConfig.Server
	}
	if fileConfig.CACert != "" {
		c.CACert = fileConfig.CACert
	}
	if fileConfig.Timeout != 0 {
		c.Timeout = fileConfig.Timeout
	}

	return nil
}

func (c *Config) loadFromEnv() error {
	if server := os.Getenv(envServer); server != "" {
		c.Server = server
	}
	if caCert := os.Getenv(envCACert); caCert != "" {
		c.CACert = caCert
	}
	if timeout := os.Getenv(envTimeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envTimeout, timeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// ApplyFlags applies command-line flag values to the configuration.
// Zero values leave the loaded setting untouched.
func (c *Config) ApplyFlags(server, caCert string) {
	if server != "" {
		c.Server = server
	}
	if caCert != "" {
		c.CACert = caCert
	}
}

// Validate validates the configuration values.
// An empty server is allowed here; commands that talk to the service call
// RequireServer.
func (c *Config) Validate() error {
	if c.Server != "" {
		u, err := url.Parse(c.Server)
		if err != nil {
			return fmt.Errorf("invalid server URL %q: %w", c.Server, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid server URL %q: scheme must be http or https", c.Server)
		}
		if u.Host == "" {
			return fmt.Errorf("invalid server URL %q: missing host", c.Server)
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.Timeout)
	}

	if c.CACert != "" {
		if _, err := os.Stat(c.CACert); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("CA certificate file not found: %s", c.CACert)
			}
			return fmt.Errorf("failed to access CA certificate file %s: %w", c.CACert, err)
		}
	}

	return nil
}

// RequireServer checks that a server is configured.
func (c *Config) RequireServer() error {
	if c.Server == "" {
		return fmt.Errorf("mirror service URL not specified\n"+
			"Use --server flag, %s environment variable, or add 'server:' to config file:\n"+
			"  Config file location: <UserConfigDir>/mirrorctl/config.yaml\n"+
			"  Example: server: https://mirror.example.com", envServer)
	}
	return nil
}

// BaseURL returns the API base URL. A server URL without a path gets the
// default /api prefix.
func (c *Config) BaseURL() string {
	base := strings.TrimRight(c.Server, "/")
	u, err := url.Parse(base)
	if err == nil && u.Path == "" {
		return base + apiPrefix
	}
	return base
}

// HostPort returns the server's host:port, filling in the scheme's default
// port. It returns "" when no valid server is set.
func (c *Config) HostPort() string {
	u, err := url.Parse(c.Server)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// UsesTLS reports whether the server URL is https.
func (c *Config) UsesTLS() bool {
	return strings.HasPrefix(strings.ToLower(c.Server), "https://")
}

// Save writes the configuration to the user config file.
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	if err := EnsureDir(filepath.Dir(configPath)); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}
	return nil
}
