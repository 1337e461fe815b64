package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/clicontext"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/login"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// LoginCommand implements the 'login' command.
type LoginCommand struct{}

// NewLoginCommand creates a new login command instance.
func NewLoginCommand() *LoginCommand {
	return &LoginCommand{}
}

// Execute runs the login command with the provided arguments.
func (c *LoginCommand) Execute(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)

	conn := addConnectionFlags(fs)
	username := fs.String("username", "", "Username for authentication")
	password := fs.String("password", "", "Password for authentication (prompts if not provided)")
	wait := fs.Bool("wait", false, "Wait out an account lockout and retry (implied by --assumeyes)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: mirrorctl login [flags]

Authenticate with the mirror service using a salted challenge-response
proof. The password never leaves this machine. The session token is
stored for subsequent commands.

After repeated failures the server locks the account for a while; the
remaining time is shown as a countdown. With --wait the login is retried
once the lockout ends.

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Interactive (prompts for username and password)
  mirrorctl login --server https://mirror.example.com

  # Non-interactive (for CI/CD)
  mirrorctl -y login --server https://mirror.example.com --username admin --password secret
`)
	}

	if err := fs.Parse(args); err != nil {
		exitWithError("failed to parse flags: %v", err)
	}

	cfg, err := conn.load()
	if err != nil {
		exitWithError("%v", err)
	}

	p := newPrompter()
	user := *username
	if user == "" {
		if user, err = p.line("Username"); err != nil {
			exitWithError("%v", err)
		}
	}
	pass := *password
	if pass == "" {
		if pass, err = p.password("Password"); err != nil {
			exitWithError("%v", err)
		}
	}

	env, err := createSession(cfg)
	if err != nil {
		exitWithError("%v", err)
	}
	defer env.mgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(os.Stderr, "Authenticating with %s...\n", cfg.Server)
	if err := c.login(ctx, env, user, pass, *wait || clicontext.AssumeYes(), os.Stderr); err != nil {
		exitWithError("%v", err)
	}

	// Remember the server so --server isn't required next time.
	if err := cfg.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save connection config: %v\n", err)
	}
}

// login attempts to authenticate, optionally waiting out lockouts.
func (c *LoginCommand) login(ctx context.Context, env *sessionEnv, username, password string, wait bool, out io.Writer) error {
	state := env.mgr.State()
	unlocked := make(chan struct{}, 1)
	printer := &countdownPrinter{out: out}

	state.Observe(func(s login.State) {
		printer.update(s)
		if !s.Locked() {
			select {
			case unlocked <- struct{}{}:
			default:
			}
		}
	})

	for {
		err := env.mgr.Login(ctx, username, password)
		if err == nil {
			snap := env.mgr.Snapshot()
			fmt.Fprintf(out, "Logged in as %s.\n", displayName(snap.CurrentUser))
			return nil
		}

		apiErr := protocol.AsError(err)
		snap := env.mgr.Snapshot()
		if apiErr.Kind() != protocol.KindLocked || !wait || !snap.Locked() {
			return describeLoginError(apiErr, snap)
		}

		// Drop signals from before the lockout started.
		select {
		case <-unlocked:
		default:
		}
		if !env.mgr.Snapshot().Locked() {
			continue
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("login cancelled: %w", ctx.Err())
		case <-unlocked:
		}
	}
}

func describeLoginError(apiErr *protocol.ErrorResponse, snap login.State) error {
	switch apiErr.Kind() {
	case protocol.KindAuthentication:
		return fmt.Errorf("%s (%d failed attempts)", apiErr.Message, snap.FailureCount)
	case protocol.KindLocked:
		if wait := apiErr.RetryAfterSeconds(); wait > 0 {
			return fmt.Errorf("account locked after %d failed attempts, try again in %d seconds", snap.FailureCount, wait)
		}
		return fmt.Errorf("account locked after %d failed attempts", snap.FailureCount)
	case protocol.KindNotFound:
		return fmt.Errorf("%s", apiErr.Message)
	default:
		return fmt.Errorf("authentication failed: %w", apiErr)
	}
}

func displayName(u *protocol.UserInfo) string {
	switch {
	case u == nil:
		return "unknown user"
	case u.DisplayName != "":
		return fmt.Sprintf("%s (%s)", u.DisplayName, u.Username)
	default:
		return u.Username
	}
}

// countdownPrinter renders the lockout countdown on a single terminal line.
type countdownPrinter struct {
	out io.Writer

	mu   sync.Mutex
	last int
}

func (p *countdownPrinter) update(s login.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.LockoutSeconds == p.last {
		return
	}
	switch {
	case s.LockoutSeconds > 0:
		fmt.Fprintf(p.out, "\rAccount locked, retry in %3ds", s.LockoutSeconds)
	case p.last > 0:
		fmt.Fprintf(p.out, "\rAccount unlocked.           \n")
	}
	p.last = s.LockoutSeconds
}
