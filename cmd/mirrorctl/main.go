// Package main provides mirrorctl, the command line client for GitLab
// Mirror authentication.
//
// mirrorctl signs in with a salted challenge-response proof, keeps the
// session token in the user cache directory and uses it for later commands.
package main

import (
	"fmt"
	"os"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/clicontext"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/commands"
)

// version is set by build flags
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args, command := parseGlobalFlags(os.Args[1:])

	switch command {
	case "--help", "-h", "help", "":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("mirrorctl version %s\n", version)
		os.Exit(0)
	}

	switch command {
	case "login":
		commands.NewLoginCommand().Execute(args)
	case "logout":
		commands.NewLogoutCommand().Execute(args)
	case "whoami":
		commands.NewWhoamiCommand().Execute(args)
	case "status":
		commands.NewStatusCommand().Execute(args)
	case "hash-password":
		commands.NewHashPasswordCommand().Execute(args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// parseGlobalFlags processes global flags and returns remaining args and the command.
// Global flags can appear anywhere in the argument list:
//
//	mirrorctl -y login --server https://mirror.example.com
//	mirrorctl login --verbose --server https://mirror.example.com
func parseGlobalFlags(args []string) ([]string, string) {
	remainingArgs := make([]string, 0, len(args))
	var command string

	for _, arg := range args {
		switch arg {
		case "--assumeyes", "-y":
			clicontext.SetAssumeYes(true)
			continue
		case "--verbose":
			clicontext.SetVerbose(true)
			continue
		}

		// First non-flag argument is the command
		if command == "" && (!isFlag(arg) || isTopLevel(arg)) {
			command = arg
			continue
		}

		remainingArgs = append(remainingArgs, arg)
	}

	return remainingArgs, command
}

// isFlag returns true if the argument looks like a flag (starts with -).
func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

// isTopLevel reports flags that act as commands.
func isTopLevel(arg string) bool {
	switch arg {
	case "--help", "-h", "--version", "-v":
		return true
	}
	return false
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `mirrorctl - GitLab Mirror authentication client

Usage:
  mirrorctl <command> [flags]

Available Commands:
  login          Sign in and store a session token
  logout         Revoke and delete the stored session
  whoami         Show the signed-in user
  status         Query the mirror service status
  hash-password  Print a users file entry for mirror-authd

Global Flags:
  --help, -h        Show help information
  --version, -v     Show version information
  --assumeyes, -y   Answer 'yes' to prompts: accept unknown certificates, wait out lockouts
  --verbose         Log debug output to stderr

Examples:
  # Sign in
  mirrorctl login --server https://mirror.example.com --username admin

  # Show who is signed in
  mirrorctl whoami --output json

  # Create an account entry for the server
  mirrorctl hash-password --username alice >> /etc/mirror-authd/users.yaml

For detailed help on a specific command, run:
  mirrorctl <command> --help

`)
}
