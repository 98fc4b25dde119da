// Package assembly models managed program units and the paths derived from
// them as they move through the build.
package assembly

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// LinkedDir is the build subdirectory that receives IL-linked assemblies.
const LinkedDir = "linked"

// Assembly is one managed program unit and its derived artefacts.
type Assembly struct {
	Source  string
	Linked  string
	Bitcode string
	Object  string
}

// New derives every artefact path for source under buildDir.
func New(buildDir, source string) Assembly {
	return Assembly{
		Source:  source,
		Linked:  LinkedPath(buildDir, source),
		Bitcode: BitcodePath(buildDir, source),
		Object:  ObjectPath(buildDir, source),
	}
}

// Name returns the file name of path (directory stripped).
func Name(path string) string {
	return filepath.Base(path)
}

// Stem returns the file name of path without directory and final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LinkedPath is where the IL linker leaves the copy of source.
func LinkedPath(buildDir, source string) string {
	return filepath.Join(buildDir, LinkedDir, Name(source))
}

// BitcodePath is where the AOT compiler writes the IR module for source.
func BitcodePath(buildDir, source string) string {
	return filepath.Join(buildDir, Stem(source)+".bc")
}

// ObjectPath is where codegen writes the object file for source.
func ObjectPath(buildDir, source string) string {
	return filepath.Join(buildDir, Stem(source)+".o")
}

// IsAssembly reports whether path carries a managed assembly extension.
func IsAssembly(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dll", ".exe":
		return true
	default:
		return false
	}
}

// Validate rejects empty input, non-assembly paths, paths the staleness
// checks cannot use and duplicates. Two paths are duplicates when they clean
// to the same file or share a stem, since the stem keys the bitcode, the
// object and the metadata symbol.
func Validate(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no input assemblies")
	}
	byPath := make(map[string]string, len(paths))
	for _, p := range paths {
		if !IsAssembly(p) {
			return fmt.Errorf("%s: not an assembly (expected .dll or .exe)", p)
		}
		if strings.ContainsRune(p, '$') {
			return fmt.Errorf("%s: assembly paths may not contain '$'", p)
		}
		clean := filepath.Clean(p)
		if abs, err := filepath.Abs(clean); err == nil {
			clean = abs
		}
		if prev, ok := byPath[clean]; ok {
			return fmt.Errorf("duplicate assembly %s (also given as %s)", p, prev)
		}
		byPath[clean] = p
	}
	return UniqueStems(paths)
}

// UniqueStems rejects two assemblies with the same stem, such as App.exe and
// App.dll, which would share App.bc, App.o and mono_aot_module_App_info.
func UniqueStems(paths []string) error {
	byStem := make(map[string]string, len(paths))
	for _, p := range paths {
		stem := Stem(p)
		if prev, ok := byStem[stem]; ok {
			return fmt.Errorf("assemblies %s and %s share the name %s", prev, p, stem)
		}
		byStem[stem] = p
	}
	return nil
}

// EntryFirst orders paths so the one named like entry comes first and the
// rest follow sorted by file name.
func EntryFirst(paths []string, entry string) ([]string, error) {
	want := Name(entry)
	out := make([]string, 0, len(paths))
	var head string
	for _, p := range paths {
		if head == "" && Name(p) == want {
			head = p
			continue
		}
		out = append(out, p)
	}
	if head == "" {
		return nil, fmt.Errorf("entry assembly %s not found", want)
	}
	sort.SliceStable(out, func(i, j int) bool { return Name(out[i]) < Name(out[j]) })
	return append([]string{head}, out...), nil
}

// Names maps paths to their file names, preserving order.
func Names(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = Name(p)
	}
	return names
}
