// Package paths locates the installation directories the toolchain ships
// with: the library directory (runtime module, reference assemblies, loader
// template) and the binary directory (companion tools).
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Offsets of the installation directories from the directory holding the
// running executable.
const (
	LibOffset = "../lib"
	BinOffset = "../bin"
)

// Dirs holds the canonical installation directories.
type Dirs struct {
	Lib string
	Bin string
}

// Error reports an installation directory that cannot be used.
type Error struct {
	Kind string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s directory %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Self resolves the installation directories relative to the running binary.
func Self() (Dirs, error) {
	exe, err := os.Executable()
	if err != nil {
		return Dirs{}, &Error{Kind: "executable", Path: "", Err: err}
	}
	return Resolve(exe)
}

// Resolve resolves the installation directories relative to selfPath, the
// path of the program itself.
func Resolve(selfPath string) (Dirs, error) {
	self, err := canonical(selfPath)
	if err != nil {
		return Dirs{}, &Error{Kind: "executable", Path: selfPath, Err: err}
	}
	base := filepath.Dir(self)
	lib, err := Dir("library", filepath.Join(base, filepath.FromSlash(LibOffset)))
	if err != nil {
		return Dirs{}, err
	}
	bin, err := Dir("binary", filepath.Join(base, filepath.FromSlash(BinOffset)))
	if err != nil {
		return Dirs{}, err
	}
	return Dirs{Lib: lib, Bin: bin}, nil
}

// Dir canonicalizes path and checks that it names a directory.
func Dir(kind, path string) (string, error) {
	resolved, err := canonical(path)
	if err != nil {
		return "", &Error{Kind: kind, Path: path, Err: err}
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", &Error{Kind: kind, Path: path, Err: err}
	}
	if !info.IsDir() {
		return "", &Error{Kind: kind, Path: path, Err: fmt.Errorf("not a directory")}
	}
	return resolved, nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
