package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gitlab-mirror/mirrorauth/internal/auth"
	"github.com/gitlab-mirror/mirrorauth/pkg/scram"
)

// HashPasswordCommand implements the 'hash-password' command, which prints
// a users file entry for mirror-authd.
type HashPasswordCommand struct{}

// NewHashPasswordCommand creates a new hash-password command instance.
func NewHashPasswordCommand() *HashPasswordCommand {
	return &HashPasswordCommand{}
}

// Execute runs the hash-password command with the provided arguments.
func (c *HashPasswordCommand) Execute(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	username := fs.String("username", "", "Username of the new entry (required)")
	displayName := fs.String("display-name", "", "Display name of the new entry")
	iterations := fs.Int("iterations", scram.DefaultIterations, "PBKDF2 iteration count")
	password := fs.String("password", "", "Password to hash (prompts twice if not provided)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: mirrorctl hash-password --username <name> [flags]

Derive the salted stored key for a password and print a users file entry
for mirror-authd. Only the stored key is printed; the password cannot be
recovered from it.

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  mirrorctl hash-password --username admin --display-name Administrator >> users.yaml
`)
	}

	if err := fs.Parse(args); err != nil {
		exitWithError("failed to parse flags: %v", err)
	}
	if *username == "" {
		fmt.Fprintf(os.Stderr, "Error: --username is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	pass := *password
	if pass == "" {
		var err error
		if pass, err = readNewPassword(newPrompter()); err != nil {
			exitWithError("%v", err)
		}
	}

	if err := c.hash(*username, *displayName, pass, *iterations, os.Stdout); err != nil {
		exitWithError("%v", err)
	}
}

func (c *HashPasswordCommand) hash(username, displayName, password string, iterations int, out io.Writer) error {
	if password == "" {
		return errors.New("password must not be empty")
	}

	user, err := auth.NewUser(username, displayName, password, iterations)
	if err != nil {
		return err
	}

	data, err := auth.MarshalUsers(user)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func readNewPassword(p *prompter) (string, error) {
	first, err := p.password("Password")
	if err != nil {
		return "", err
	}
	second, err := p.password("Repeat password")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
