// Package commands provides CLI command implementations for mirrorctl.
package commands

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/clicontext"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/client"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/config"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/login"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/session"
	"github.com/gitlab-mirror/mirrorauth/internal/logging"
)

// connectionFlags are the flags shared by every command that talks to a server.
type connectionFlags struct {
	server *string
	caCert *string
}

func addConnectionFlags(fs *flag.FlagSet) connectionFlags {
	return connectionFlags{
		server: fs.String("server", "", "Mirror service URL, e.g. https://mirror.example.com"),
		caCert: fs.String("ca-cert", "", "Path to custom CA certificate bundle"),
	}
}

// load reads the configuration and applies the flags on top.
func (f connectionFlags) load() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyFlags(*f.server, *f.caCert)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.RequireServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sessionEnv is a login manager wired to one server's client and token slot.
type sessionEnv struct {
	server string
	client *client.Client
	mgr    *login.Manager
}

// newSessionEnv wires mgr into c: 401 responses outside the login entry
// points invalidate the stored session.
func newSessionEnv(server string, c *client.Client, slot login.TokenStore, errOut io.Writer, opts ...login.Option) *sessionEnv {
	opts = append([]login.Option{
		login.WithLogger(newLogger(errOut)),
		login.WithRedirect(func() {
			fmt.Fprintf(errOut, "Session expired. Run 'mirrorctl login' to sign in again.\n")
		}),
	}, opts...)

	mgr := login.New(c, slot, opts...)
	c.OnUnauthorized(mgr.HandleUnauthorized)

	return &sessionEnv{server: server, client: c, mgr: mgr}
}

// createSession builds the session environment for cfg using the user's
// session store.
func createSession(cfg *config.Config) (*sessionEnv, error) {
	apiClient, err := client.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	store, err := session.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to access session store: %w", err)
	}

	return newSessionEnv(cfg.Server, apiClient, store.Slot(cfg.BaseURL()), os.Stderr), nil
}

// newLogger logs warnings, or everything with --verbose, as text on w.
func newLogger(w io.Writer) *logging.Logger {
	level := logging.LevelWarn
	if clicontext.Verbose() {
		level = logging.LevelDebug
	}
	logger := logging.New(level, logging.FormatHuman)
	logger.SetOutput(w, w)
	return logger
}

// exitWithError prints an error message to stderr and exits with status 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// prompter reads interactive input. Passwords are read without echo when
// in is a terminal.
type prompter struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter() *prompter {
	return &prompter{in: os.Stdin, out: os.Stderr, reader: bufio.NewReader(os.Stdin)}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	text, err := p.reader.ReadString('\n')
	if err != nil && text == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(text), nil
}

func (p *prompter) password(label string) (string, error) {
	fd := int(p.in.Fd()) // #nosec G115 - file descriptors fit in int
	if !term.IsTerminal(fd) {
		text, err := p.line(label)
		return text, err
	}

	fmt.Fprintf(p.out, "%s: ", label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintf(p.out, "\n")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}
