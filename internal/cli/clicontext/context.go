// Package clicontext holds the mirrorctl flags that apply to every command.
package clicontext

import "sync"

// Global holds the global CLI context.
type Global struct {
	// AssumeYes answers 'yes' to every prompt: unknown certificates are
	// pinned and a login lockout is waited out.
	AssumeYes bool

	// Verbose enables debug logging on stderr.
	Verbose bool
}

var (
	globalContext = &Global{}
	mu            sync.RWMutex
)

// Set replaces the global CLI context.
func Set(ctx *Global) {
	mu.Lock()
	defer mu.Unlock()
	globalContext = ctx
}

// Get returns a copy of the current global CLI context.
func Get() Global {
	mu.RLock()
	defer mu.RUnlock()
	return *globalContext
}

// AssumeYes returns whether the CLI is in assume-yes mode.
func AssumeYes() bool {
	mu.RLock()
	defer mu.RUnlock()
	return globalContext.AssumeYes
}

// SetAssumeYes sets the assume-yes flag.
func SetAssumeYes(value bool) {
	mu.Lock()
	defer mu.Unlock()
	globalContext.AssumeYes = value
}

// Verbose returns whether debug logging is enabled.
func Verbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return globalContext.Verbose
}

// SetVerbose sets the verbose flag.
func SetVerbose(value bool) {
	mu.Lock()
	defer mu.Unlock()
	globalContext.Verbose = value
}
