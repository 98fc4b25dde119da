package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"monowasm/internal/assembly"
	"monowasm/internal/ctxlog"
	"monowasm/internal/stale"
	"monowasm/internal/toolchain"
)

// ILLinkResult lists the linked assemblies, entry assembly first.
type ILLinkResult struct {
	Assemblies []string
	// Ran is false when every linked copy was fresh and the linker was
	// skipped.
	Ran bool
}

// LinkedDir returns the directory the IL linker writes into.
func (inv *Invoker) LinkedDir() string {
	return filepath.Join(inv.Config.BuildDir, assembly.LinkedDir)
}

// ILLink trims and merges inputs into the linked directory, using the
// library directory as the reference framework set. inputs[0] is the entry
// assembly. The linker only links whole batches, so one stale input reruns
// it for all of them. A rerun starts from an empty directory.
func (inv *Invoker) ILLink(ctx context.Context, inputs []string) (ILLinkResult, error) {
	var res ILLinkResult
	if len(inputs) == 0 {
		return res, fmt.Errorf("IL link: no input assemblies")
	}
	out := inv.LinkedDir()

	fresh := false
	if !inv.Config.Force && !inv.InputsChanged && !inv.ManagedStale {
		edges := make([]stale.Edge, len(inputs))
		for i, in := range inputs {
			edges[i] = stale.Edge{Source: in, Derived: assembly.LinkedPath(inv.Config.BuildDir, in)}
		}
		var err error
		if fresh, err = stale.AllFresh(edges); err != nil {
			return res, err
		}
	}

	if !fresh {
		if err := os.RemoveAll(out); err != nil {
			return res, fmt.Errorf("failed to clear %s: %w", out, err)
		}
		if err := os.MkdirAll(out, 0o750); err != nil {
			return res, fmt.Errorf("failed to create %s: %w", out, err)
		}
		args := []string{"-out", out, "-d", inv.Config.LibDir, "-c", "link", "-l", "none"}
		if inv.Config.Debug {
			args = append(args, "-b", "true")
		}
		for _, in := range inputs {
			args = append(args, "-a", in)
		}
		if err := inv.run(ctx, toolchain.Command{Name: inv.Config.Tools.ILLinker, Args: args}); err != nil {
			return res, err
		}
		res.Ran = true
	} else {
		ctxlog.FromContext(ctx).Debug("linked assemblies are up to date", "dir", out)
	}

	linked, err := scanAssemblies(out)
	if err != nil {
		return res, err
	}
	ordered, err := assembly.EntryFirst(linked, inputs[0])
	if err != nil {
		return res, fmt.Errorf("IL link output in %s: %w", out, err)
	}
	res.Assemblies = ordered
	return res, nil
}

func scanAssemblies(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan linked assemblies: %w", err)
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() || !assembly.IsAssembly(e.Name()) {
			continue
		}
		found = append(found, filepath.Join(dir, e.Name()))
	}
	return found, nil
}
