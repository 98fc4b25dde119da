package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"monowasm/internal/assembly"
	"monowasm/internal/bytebuf"
	"monowasm/internal/irlink"
	"monowasm/internal/toolchain"
)

// ErrUnsupportedTriple reports a target triple the backend cannot emit
// WebAssembly objects for.
var ErrUnsupportedTriple = errors.New("unsupported target triple")

// DisDir is the build subdirectory holding disassembled bitcode.
const DisDir = "dis"

// initial capacity for captured object code
const objectBufferSize = 1 << 20

// ValidateTriple accepts wasm32 and wasm64 triples.
func ValidateTriple(triple string) error {
	arch, _, _ := strings.Cut(triple, "-")
	switch arch {
	case "wasm32", "wasm64":
		return nil
	default:
		return fmt.Errorf("%w %q: want a wasm32 or wasm64 target", ErrUnsupportedTriple, triple)
	}
}

// Codegen lowers the IR module at in to an object file at out.
func (inv *Invoker) Codegen(ctx context.Context, in, out string) error {
	if err := ValidateTriple(inv.Config.Triple); err != nil {
		return err
	}
	buf := bytebuf.New(objectBufferSize)
	cmd := toolchain.Command{
		Name:   inv.Config.Tools.LLC,
		Args:   []string{"-mtriple=" + inv.Config.Triple, inv.Config.Opt.Flag(), "-filetype=obj", in, "-o", "-"},
		Stdout: buf,
	}
	if err := inv.run(ctx, cmd); err != nil {
		return err
	}
	if buf.Len() == 0 {
		return fmt.Errorf("%s produced no object code for %s", inv.Config.Tools.LLC, in)
	}
	return writeAtomic(out, buf.Bytes())
}

// CodegenResult lists object files in input order.
type CodegenResult struct {
	Objects   []string
	Generated int
}

// CodegenModules lowers each IR module to its own object file under the build
// directory, skipping modules whose object is fresh.
func (inv *Invoker) CodegenModules(ctx context.Context, modules []string) (CodegenResult, error) {
	res := CodegenResult{Objects: make([]string, len(modules))}
	var generated atomic.Int64
	err := forEach(ctx, inv.Config.Jobs, len(modules), func(ctx context.Context, i int) error {
		in := modules[i]
		obj := assembly.ObjectPath(inv.Config.BuildDir, in)
		res.Objects[i] = obj
		need := inv.ObjectsStale
		if !need {
			var err error
			if need, err = inv.needsBuild(in, obj); err != nil {
				return err
			}
		}
		if !need {
			return nil
		}
		if err := inv.Codegen(ctx, in, obj); err != nil {
			return err
		}
		generated.Add(1)
		return nil
	})
	res.Generated = int(generated.Load())
	return res, err
}

// TextualIR returns paths of textual IR for modules, disassembling binary
// bitcode into the build directory where needed.
func (inv *Invoker) TextualIR(ctx context.Context, modules []string) ([]string, error) {
	out := make([]string, len(modules))
	err := forEach(ctx, inv.Config.Jobs, len(modules), func(ctx context.Context, i int) error {
		p, err := inv.textualIR(ctx, modules[i])
		out[i] = p
		return err
	})
	return out, err
}

func (inv *Invoker) textualIR(ctx context.Context, in string) (string, error) {
	binary, err := sniffBitcode(in)
	if err != nil || !binary {
		return in, err
	}
	ll := filepath.Join(inv.Config.BuildDir, DisDir, assembly.Stem(in)+".ll")
	need, err := inv.needsBuild(in, ll)
	if err != nil || !need {
		return ll, err
	}
	if err := os.MkdirAll(filepath.Dir(ll), 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(ll), err)
	}
	cmd := toolchain.Command{Name: inv.Config.Tools.LLVMDis, Args: []string{in, "-o", ll}}
	if err := inv.run(ctx, cmd); err != nil {
		return "", err
	}
	return ll, requireOutput(inv.Config.Tools.LLVMDis, ll)
}

func sniffBitcode(path string) (bool, error) {
	// #nosec G304 -- path comes from the build plan
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open IR module: %w", err)
	}
	defer func() { _ = f.Close() }()
	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read IR module: %w", err)
	}
	return irlink.IsBitcode(head[:n]), nil
}
