// Package testkit provides a simulated toolchain and installation layout
// for tests that drive the build without the real external tools.
package testkit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"monowasm/internal/assembly"
	"monowasm/internal/toolchain"
)

// Tool identifies one simulated external tool.
type Tool string

// Simulated tools, named after toolchain.DefaultTools.
const (
	ILLinker Tool = "monolinker"
	AOT      Tool = "mono"
	LLC      Tool = "llc"
	LLVMDis  Tool = "llvm-dis"
	WasmLD   Tool = "wasm-ld"
	CILStrip Tool = "mono-cil-strip"
	Minifier Tool = "minify"
)

// WasmMagic starts every binary the fake object linker writes.
const WasmMagic = "\x00asm"

// FakeToolchain implements toolchain.Runner by imitating each tool's file
// effects. It records every command it receives.
type FakeToolchain struct {
	// Framework lists extra assemblies the IL linker pulls in from the
	// library directory next to the inputs, e.g. "mscorlib.dll".
	Framework []string
	// Fail makes the named tool exit with status 1.
	Fail map[Tool]bool
	// EmptyBitcode makes the AOT compiler write zero-byte modules.
	EmptyBitcode bool
	// OmitSymbol makes the AOT compiler leave out the metadata global of the
	// named assembly stem.
	OmitSymbol string

	mu    sync.Mutex
	calls []toolchain.Command
}

// Calls returns the recorded commands in arrival order.
func (f *FakeToolchain) Calls() []toolchain.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]toolchain.Command(nil), f.calls...)
}

// Count returns how many times tool ran.
func (f *FakeToolchain) Count(tool Tool) int {
	n := 0
	for _, c := range f.Calls() {
		if toolOf(c) == tool {
			n++
		}
	}
	return n
}

// Reset forgets the recorded commands.
func (f *FakeToolchain) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func toolOf(cmd toolchain.Command) Tool {
	return Tool(filepath.Base(cmd.Name))
}

// Run implements toolchain.Runner.
func (f *FakeToolchain) Run(_ context.Context, cmd toolchain.Command) (toolchain.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	tool := toolOf(cmd)
	if f.Fail[tool] {
		stderr := fmt.Sprintf("%s: simulated failure", tool)
		return toolchain.Result{ExitCode: 1, Stderr: stderr}, &toolchain.ExitError{
			Command:  cmd.String(),
			ExitCode: 1,
			Stderr:   stderr,
		}
	}
	var err error
	switch tool {
	case ILLinker:
		err = f.ilLink(cmd.Args)
	case AOT:
		err = f.aot(cmd.Args)
	case LLC:
		err = llc(cmd)
	case LLVMDis:
		err = fmt.Errorf("llvm-dis: fake modules are already textual")
	case WasmLD:
		err = wasmLD(cmd.Args)
	case CILStrip:
		err = copyFile(cmd.Args[0], cmd.Args[1])
	case Minifier:
		err = minify(cmd)
	default:
		err = fmt.Errorf("unknown tool %q", cmd.Name)
	}
	if err != nil {
		return toolchain.Result{ExitCode: 1, Stderr: err.Error()}, &toolchain.ExitError{
			Command:  cmd.String(),
			ExitCode: 1,
			Stderr:   err.Error(),
		}
	}
	return toolchain.Result{}, nil
}

func flagValue(args []string, name string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == name {
			return args[i+1]
		}
	}
	return ""
}

func (f *FakeToolchain) ilLink(args []string) error {
	out := flagValue(args, "-out")
	lib := flagValue(args, "-d")
	var inputs []string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-a" {
			inputs = append(inputs, args[i+1])
		}
	}
	if out == "" || len(inputs) == 0 {
		return fmt.Errorf("monolinker: missing -out or -a")
	}
	for _, in := range inputs {
		if err := copyFile(in, filepath.Join(out, filepath.Base(in))); err != nil {
			return err
		}
	}
	for _, name := range f.Framework {
		if err := copyFile(filepath.Join(lib, name), filepath.Join(out, name)); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeToolchain) aot(args []string) error {
	var bc string
	for _, a := range args {
		if aotOpts, ok := strings.CutPrefix(a, "--aot="); ok {
			for _, opt := range strings.Split(aotOpts, ",") {
				if v, ok := strings.CutPrefix(opt, "llvm-outfile="); ok {
					bc = v
				}
			}
		}
	}
	if bc == "" || len(args) == 0 {
		return fmt.Errorf("mono: missing llvm-outfile")
	}
	src := args[len(args)-1]
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("mono: %w", err)
	}
	if f.EmptyBitcode {
		return os.WriteFile(bc, nil, 0o600)
	}
	return os.WriteFile(bc, []byte(ModuleIR(assembly.Stem(src), f.OmitSymbol == assembly.Stem(src))), 0o600)
}

// ModuleIR is the textual module the fake AOT compiler emits for stem.
func ModuleIR(stem string, omitSymbol bool) string {
	var b strings.Builder
	if !omitSymbol {
		fmt.Fprintf(&b, "@%s = global i8* null\n", assembly.MetadataSymbol(stem+".dll"))
	}
	fmt.Fprintf(&b, "@counter = internal global i32 0\n\n")
	fmt.Fprintf(&b, "define void @%q() {\nentry:\n  ret void\n}\n", "aot_"+stem+"_init")
	return b.String()
}

// RuntimeIR is the runtime support module installed in the library
// directory.
const RuntimeIR = `define void @mono_aot_register_module(i8* %info) {
entry:
  ret void
}
`

func llc(cmd toolchain.Command) error {
	if len(cmd.Args) < 3 || cmd.Stdout == nil {
		return fmt.Errorf("llc: expected output on stdout")
	}
	in := cmd.Args[len(cmd.Args)-3]
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("llc: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("llc: %s: empty module", in)
	}
	_, err = fmt.Fprintf(cmd.Stdout, "OBJ %s %d\n", filepath.Base(in), len(data))
	return err
}

func wasmLD(args []string) error {
	out := flagValue(args, "-o")
	if out == "" {
		return fmt.Errorf("wasm-ld: missing -o")
	}
	var objs []string
	for _, a := range args {
		if a == "-o" {
			break
		}
		objs = append(objs, filepath.Base(a))
	}
	body := WasmMagic + "\n" + strings.Join(objs, "\n") + "\n"
	return os.WriteFile(out, []byte(body), 0o600)
}

func minify(cmd toolchain.Command) error {
	if cmd.Stdin == nil || cmd.Stdout == nil {
		return fmt.Errorf("minify: expected stdin and stdout")
	}
	data, err := io.ReadAll(cmd.Stdin)
	if err != nil {
		return err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "//") {
			out = append(out, line)
		}
	}
	_, err = io.WriteString(cmd.Stdout, strings.Join(out, ""))
	return err
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

// LinkedObjects returns the object file names recorded in a binary written
// by the fake object linker.
func LinkedObjects(wasmPath string) ([]string, error) {
	data, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, err
	}
	body, ok := strings.CutPrefix(string(data), WasmMagic+"\n")
	if !ok {
		return nil, fmt.Errorf("%s: not a fake wasm binary", wasmPath)
	}
	return strings.Fields(body), nil
}
