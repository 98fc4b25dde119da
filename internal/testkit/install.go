package testkit

import (
	"os"
	"path/filepath"
	"testing"

	"monowasm/internal/paths"
)

// LoaderTemplate is the loader script template installed by Install.
const LoaderTemplate = `// loader
var files = {{.Files}};
var wasm = "{{.Wasm}}";
var stackSize = {{.StackSize}};
`

// Install lays out an installation prefix under t.TempDir() with a bin
// directory holding a stand-in executable and a lib directory holding the
// runtime module, the loader template and the named framework assemblies.
func Install(t testing.TB, framework ...string) (self string, dirs paths.Dirs) {
	t.Helper()
	prefix := t.TempDir()
	bin := filepath.Join(prefix, "bin")
	lib := filepath.Join(prefix, "lib")
	for _, d := range []string{bin, lib} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	self = filepath.Join(bin, "monowasm")
	WriteFile(t, self, "#!/bin/sh\n")
	WriteFile(t, filepath.Join(lib, "runtime.bc"), RuntimeIR)
	WriteFile(t, filepath.Join(lib, "index.js"), LoaderTemplate)
	for _, name := range framework {
		WriteFile(t, filepath.Join(lib, name), "MZ framework "+name)
	}
	resolved, err := paths.Resolve(self)
	if err != nil {
		t.Fatalf("resolve install: %v", err)
	}
	return self, resolved
}

// Assemblies writes stand-in assemblies named names into dir and returns
// their paths in the same order.
func Assemblies(t testing.TB, dir string, names ...string) []string {
	t.Helper()
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = filepath.Join(dir, name)
		WriteFile(t, out[i], "MZ "+name)
	}
	return out
}

// WriteFile writes body to path, creating parent directories.
func WriteFile(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
