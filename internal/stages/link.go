package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"monowasm/internal/stub"
	"monowasm/internal/toolchain"
)

// ObjectLink links objects, in order, into the WebAssembly binary at out.
// Unresolved symbols are allowed since the runtime supplies them at load
// time. The binary is written under a temporary name and only renamed into
// place once the linker succeeded.
func (inv *Invoker) ObjectLink(ctx context.Context, objects []string, out string) error {
	if len(objects) == 0 {
		return fmt.Errorf("object link: no input objects")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tmp := out + ".tmp"
	args := make([]string, 0, len(objects)+8)
	args = append(args, objects...)
	args = append(args, "-o", tmp, "--allow-undefined", "--no-entry")
	if inv.Config.StripDebug {
		args = append(args, "--strip-debug")
	}
	args = append(args,
		"-z", "stack-size="+strconv.Itoa(inv.Config.StackSize),
		"--export="+stub.EntryFunc,
	)
	if err := inv.run(ctx, toolchain.Command{Name: inv.Config.Tools.WasmLD, Args: args}); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := requireOutput(inv.Config.Tools.WasmLD, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", out, err)
	}
	return nil
}
