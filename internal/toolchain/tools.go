package toolchain

import (
	"os"
	"path/filepath"
	"strings"
)

// Tools names the external collaborators. Each entry is a program name looked
// up in the binary directory first and then on PATH, or a path.
type Tools struct {
	ILLinker string `toml:"il_linker"`
	AOT      string `toml:"aot"`
	LLC      string `toml:"llc"`
	LLVMDis  string `toml:"llvm_dis"`
	WasmLD   string `toml:"wasm_ld"`
	CILStrip string `toml:"cil_strip"`
	// Minifier is an optional filter command line (stdin to stdout) applied
	// to the generated loader script.
	Minifier string `toml:"minifier"`
}

// DefaultTools returns the tool names used when nothing is configured.
func DefaultTools() Tools {
	return Tools{
		ILLinker: "monolinker",
		AOT:      "mono",
		LLC:      "llc",
		LLVMDis:  "llvm-dis",
		WasmLD:   "wasm-ld",
		CILStrip: "mono-cil-strip",
	}
}

// Merge returns t with every empty entry taken from fallback.
func (t Tools) Merge(fallback Tools) Tools {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return a
		}
		return b
	}
	return Tools{
		ILLinker: pick(t.ILLinker, fallback.ILLinker),
		AOT:      pick(t.AOT, fallback.AOT),
		LLC:      pick(t.LLC, fallback.LLC),
		LLVMDis:  pick(t.LLVMDis, fallback.LLVMDis),
		WasmLD:   pick(t.WasmLD, fallback.WasmLD),
		CILStrip: pick(t.CILStrip, fallback.CILStrip),
		Minifier: pick(t.Minifier, fallback.Minifier),
	}
}

// Locate resolves name against binDir. Names containing a path separator are
// returned unchanged; names not found in binDir are left for PATH lookup.
func Locate(binDir, name string) string {
	if name == "" || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return name
	}
	if binDir == "" {
		return name
	}
	candidate := filepath.Join(binDir, name)
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return name
	}
	return candidate
}

// In returns t with every tool located against binDir.
func (t Tools) In(binDir string) Tools {
	return Tools{
		ILLinker: Locate(binDir, t.ILLinker),
		AOT:      Locate(binDir, t.AOT),
		LLC:      Locate(binDir, t.LLC),
		LLVMDis:  Locate(binDir, t.LLVMDis),
		WasmLD:   Locate(binDir, t.WasmLD),
		CILStrip: Locate(binDir, t.CILStrip),
		Minifier: t.Minifier,
	}
}
