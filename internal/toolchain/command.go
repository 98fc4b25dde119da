// Package toolchain runs the external build tools as typed subprocess
// invocations.
package toolchain

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Command is one invocation of an external tool. Args are passed verbatim,
// never through a shell.
type Command struct {
	Name   string
	Args   []string
	Env    []string // KEY=VALUE pairs added to the parent environment
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"'\\$") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// Result captures the outcome of a finished command.
type Result struct {
	ExitCode int
	Stderr   string
}

// Runner executes commands and waits for them to finish. A non-zero exit is
// reported as an *ExitError.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// ExitError reports a tool that ran but did not succeed, or could not start.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	switch {
	case msg != "":
		return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	default:
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
}

func (e *ExitError) Unwrap() error { return e.Err }
