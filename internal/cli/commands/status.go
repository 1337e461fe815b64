package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/output"
)

// StatusCommand implements the 'status' command.
type StatusCommand struct{}

// NewStatusCommand creates a new status command instance.
func NewStatusCommand() *StatusCommand {
	return &StatusCommand{}
}

type statusResult struct {
	Server   string `json:"server" yaml:"server"`
	Status   string `json:"status" yaml:"status"`
	Version  string `json:"version" yaml:"version"`
	Username string `json:"username" yaml:"username"`
}

func (r statusResult) Fields() []output.Field {
	return []output.Field{
		{Key: "Server", Value: r.Server},
		{Key: "Status", Value: r.Status},
		{Key: "Version", Value: r.Version},
		{Key: "Signed in as", Value: r.Username},
	}
}

// Execute runs the status command with the provided arguments.
func (c *StatusCommand) Execute(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	conn := addConnectionFlags(fs)
	outputFormat := fs.String("output", "text", "Output format (text, yaml or json)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: mirrorctl status [flags]

Query the mirror service status. Requires prior authentication via
'mirrorctl login'.

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

	if err := c.status(context.Background(), env, format, os.Stdout); err != nil {
		exitWithError("%v", err)
	}
}

func (c *StatusCommand) status(ctx context.Context, env *sessionEnv, format output.Format, out io.Writer) error {
	env.mgr.VerifySession(ctx)
	if err := env.mgr.Require(); err != nil {
		return errNotLoggedIn
	}

	resp, err := env.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to query status: %w", err)
	}

	result := statusResult{
		Server:   env.server,
		Status:   resp.Status,
		Version:  resp.Version,
		Username: resp.User.Username,
	}
	if err := output.Print(out, result, format); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}
