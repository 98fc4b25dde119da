// Package stages wraps each external build tool behind a run-once-per-unit
// contract. Any failure aborts the build; outputs of earlier stages stay on
// disk.
package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"monowasm/internal/config"
	"monowasm/internal/ctxlog"
	"monowasm/internal/stale"
	"monowasm/internal/toolchain"
)

// Invoker runs the build stages for one resolved configuration.
type Invoker struct {
	Config config.Context
	Runner toolchain.Runner
	// ObjectsStale forces every per-module object to be regenerated, e.g.
	// after the code generation settings changed since the last build.
	ObjectsStale bool
	// InputsChanged forces the IL linker to run even when every linked copy
	// is fresh, so assemblies dropped from the inputs leave the linked set.
	InputsChanged bool
	// ManagedStale forces the IL linker and the AOT compiler to run, e.g.
	// after debug info was switched on or off.
	ManagedStale bool
}

// New returns an Invoker. A nil runner runs real subprocesses.
func New(cfg config.Context, runner toolchain.Runner) *Invoker {
	if runner == nil {
		runner = &toolchain.ExecRunner{PrintCommands: cfg.PrintCommands}
	}
	return &Invoker{Config: cfg, Runner: runner}
}

// needsBuild reports whether derived must be produced again from source.
func (inv *Invoker) needsBuild(source, derived string) (bool, error) {
	if inv.Config.Force {
		return true, nil
	}
	return stale.IsStale(source, derived)
}

func (inv *Invoker) run(ctx context.Context, cmd toolchain.Command) error {
	ctxlog.FromContext(ctx).Debug("running tool", "cmd", cmd.String())
	if _, err := inv.Runner.Run(ctx, cmd); err != nil {
		return err
	}
	return nil
}

// requireOutput checks that a tool which reported success left its output.
func requireOutput(tool, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s reported success but did not produce %s", tool, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %s is a directory", tool, path)
	}
	return nil
}

// writeAtomic writes data to path through a temporary file in the same
// directory so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
