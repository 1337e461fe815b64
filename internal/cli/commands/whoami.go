package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/output"
)

// errNotLoggedIn is returned by commands that need a valid session.
var errNotLoggedIn = errors.New("not logged in. Run 'mirrorctl login' to authenticate")

// WhoamiCommand implements the 'whoami' command.
type WhoamiCommand struct{}

// NewWhoamiCommand creates a new whoami command instance.
func NewWhoamiCommand() *WhoamiCommand {
	return &WhoamiCommand{}
}

type whoamiResult struct {
	Server      string `json:"server" yaml:"server"`
	Username    string `json:"username" yaml:"username"`
	DisplayName string `json:"displayName,omitempty" yaml:"display_name,omitempty"`
}

func (r whoamiResult) Fields() []output.Field {
	fields := []output.Field{
		{Key: "Server", Value: r.Server},
		{Key: "Username", Value: r.Username},
	}
	if r.DisplayName != "" {
		fields = append(fields, output.Field{Key: "Display name", Value: r.DisplayName})
	}
	return fields
}

// Execute runs the whoami command with the provided arguments.
func (c *WhoamiCommand) Execute(args []string) {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	conn := addConnectionFlags(fs)
	outputFormat := fs.String("output", "text", "Output format (text, yaml or json)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: mirrorctl whoami [flags]

Verify the stored session with the server and show the signed-in user.
An invalid session is deleted.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		exitWithError("failed to parse flags: %v", err)
	}

	format, err := output.ParseFormat(*outputFormat)
	if err != nil {
		exitWithError("%v", err)
	}

	cfg, err := conn.load()
	if err != nil {
		exitWithError("%v", err)
	}

	env, err := createSession(cfg)
	if err != nil {
		exitWithError("%v", err)
	}
	defer env.mgr.Close()

	if err := c.whoami(context.Background(), env, format, os.Stdout); err != nil {
		exitWithError("%v", err)
	}
}

func (c *WhoamiCommand) whoami(ctx context.Context, env *sessionEnv, format output.Format, out io.Writer) error {
	if !env.mgr.VerifySession(ctx) {
		return errNotLoggedIn
	}

	result := whoamiResult{Server: env.server}
	if u := env.mgr.Snapshot().CurrentUser; u != nil {
		result.Username = u.Username
		result.DisplayName = u.DisplayName
	}

	if err := output.Print(out, result, format); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}
