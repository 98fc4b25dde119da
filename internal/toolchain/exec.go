package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ExecRunner runs commands as real subprocesses.
type ExecRunner struct {
	// PrintCommands echoes every command line to Echo before running it.
	PrintCommands bool
	Echo          io.Writer
	// Stdout receives tool output when the command does not capture it.
	Stdout io.Writer
}

// Run starts cmd, waits for it and captures its stderr.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if r.PrintCommands {
		echo := r.Echo
		if echo == nil {
			echo = os.Stdout
		}
		if _, err := fmt.Fprintln(echo, cmd.String()); err != nil {
			return Result{}, fmt.Errorf("failed to print command: %w", err)
		}
	}
	// #nosec G204 -- tool names come from the build configuration
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	switch {
	case cmd.Stdout != nil:
		c.Stdout = cmd.Stdout
	case r.Stdout != nil:
		c.Stdout = r.Stdout
	default:
		c.Stdout = os.Stdout
	}
	var stderr strings.Builder
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
	}
	return res, &ExitError{
		Command:  cmd.String(),
		ExitCode: res.ExitCode,
		Stderr:   res.Stderr,
		Err:      err,
	}
}
