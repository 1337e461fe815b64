package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
)

// LogoutCommand implements the 'logout' command.
type LogoutCommand struct{}

// NewLogoutCommand creates a new logout command instance.
func NewLogoutCommand() *LogoutCommand {
	return &LogoutCommand{}
}

// Execute runs the logout command with the provided arguments.
func (c *LogoutCommand) Execute(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	conn := addConnectionFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: mirrorctl logout [flags]

Revoke the stored session on the server and delete it locally. The local
session is removed even if the server cannot be reached.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		exitWithError("failed to parse flags: %v", err)
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

	if err := c.logout(context.Background(), env, os.Stderr); err != nil {
		exitWithError("%v", err)
	}
}

func (c *LogoutCommand) logout(ctx context.Context, env *sessionEnv, out io.Writer) error {
	if err := env.mgr.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged out of %s.\n", env.server)
	return nil
}
