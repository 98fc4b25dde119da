package irlink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
)

const appIR = `@mono_aot_module_App_info = global i8* null
@counter = internal global i32 1

declare void @helper()

define void @app_main() {
entry:
  call void @helper()
  ret void
}
`

const libIR = `@mono_aot_module_Lib_info = global i8* null
@counter = internal global i32 2

define void @helper() {
entry:
  ret void
}
`

func writeIR(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func findFunc(m *ir.Module, name string) *ir.Func {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func findGlobal(m *ir.Module, name string) *ir.Global {
	for _, g := range m.Globals {
		if g.Name() == name {
			return g
		}
	}
	return nil
}

func TestLinkResolvesDeclarations(t *testing.T) {
	dir := t.TempDir()
	app := writeIR(t, dir, "App.ll", appIR)
	lib := writeIR(t, dir, "Lib.ll", libIR)

	m, err := Link("index.bc", []string{app, lib})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	helper := findFunc(m, "helper")
	if helper == nil || len(helper.Blocks) == 0 {
		t.Fatalf("helper should be defined after link")
	}
	count := 0
	for _, f := range m.Funcs {
		if f.Name() == "helper" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("helper appears %d times", count)
	}
	for _, sym := range []string{"mono_aot_module_App_info", "mono_aot_module_Lib_info"} {
		if g := findGlobal(m, sym); g == nil || g.Init == nil {
			t.Fatalf("%s should be defined", sym)
		}
	}
}

func TestLinkRenamesClashingLocals(t *testing.T) {
	dir := t.TempDir()
	m, err := Link("index.bc", []string{
		writeIR(t, dir, "App.ll", appIR),
		writeIR(t, dir, "Lib.ll", libIR),
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if findGlobal(m, "counter") == nil || findGlobal(m, "counter.1") == nil {
		t.Fatalf("expected counter and counter.1, got %v", globalNames(m))
	}
	text := m.String()
	if strings.Count(text, "@counter = internal") != 1 || strings.Count(text, "@counter.1 = internal") != 1 {
		t.Fatalf("unexpected module text:\n%s", text)
	}
}

func TestLinkLaterDefinitionOverrides(t *testing.T) {
	first := `define i32 @answer() {
entry:
  ret i32 1
}
`
	second := `define i32 @answer() {
entry:
  ret i32 42
}
`
	dir := t.TempDir()
	m, err := Link("index.bc", []string{writeIR(t, dir, "a.ll", first), writeIR(t, dir, "b.ll", second)})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !strings.Contains(m.String(), "ret i32 42") || strings.Contains(m.String(), "ret i32 1\n") {
		t.Fatalf("override-from-source not applied:\n%s", m.String())
	}
}

func TestLinkTypeDefinitions(t *testing.T) {
	dir := t.TempDir()
	m, err := Link("index.bc", []string{
		writeIR(t, dir, "a.ll", "%T = type { i32 }\n%S = type opaque\n@a = global %T zeroinitializer\n"),
		writeIR(t, dir, "b.ll", "%T = type { i64 }\n%S = type { i8 }\n@b = global %T zeroinitializer\n@s = global %S zeroinitializer\n"),
		writeIR(t, dir, "c.ll", "%T = type { i32 }\n@c = global %T zeroinitializer\n"),
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	text := m.String()
	for _, want := range []string{
		"%T = type { i32 }",
		"%T.1 = type { i64 }",
		"%S = type { i8 }",
		"@a = global %T zeroinitializer",
		"@b = global %T.1 zeroinitializer",
		"@c = global %T zeroinitializer",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
	if len(m.TypeDefs) != 3 {
		t.Fatalf("type defs = %d, want 3:\n%s", len(m.TypeDefs), text)
	}
}

func TestLinkKindClash(t *testing.T) {
	dir := t.TempDir()
	_, err := Link("index.bc", []string{
		writeIR(t, dir, "a.ll", "@thing = global i32 0\n"),
		writeIR(t, dir, "b.ll", "define void @thing() {\nentry:\n  ret void\n}\n"),
	})
	var lerr *LinkError
	if !errors.As(err, &lerr) || lerr.Symbol != "thing" {
		t.Fatalf("err = %v, want LinkError on thing", err)
	}
}

func TestParseEmptyFile(t *testing.T) {
	dir := t.TempDir()
	p := writeIR(t, dir, "App.bc", "")
	_, err := LoadFile(p)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if perr.File != p {
		t.Fatalf("File = %q, want %q", perr.File, p)
	}
}

func TestParseMalformedReportsLine(t *testing.T) {
	dir := t.TempDir()
	p := writeIR(t, dir, "Bad.ll", "define void @ok() {\nentry:\n  ret void\n}\n\nthis is not IR\n")
	_, err := LoadFile(p)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if !strings.HasPrefix(perr.Error(), p) {
		t.Fatalf("error %q should name the file", perr.Error())
	}
}

func TestIsBitcode(t *testing.T) {
	if !IsBitcode([]byte{'B', 'C', 0xC0, 0xDE, 0x35}) {
		t.Fatal("raw bitcode not detected")
	}
	if !IsBitcode([]byte{0xDE, 0xC0, 0x17, 0x0B, 0}) {
		t.Fatal("wrapped bitcode not detected")
	}
	if IsBitcode([]byte("; ModuleID = 'x'")) {
		t.Fatal("text detected as bitcode")
	}
	if _, err := Parse("x.bc", []byte{'B', 'C', 0xC0, 0xDE}); err == nil {
		t.Fatal("Parse must refuse binary bitcode")
	}
}

func globalNames(m *ir.Module) []string {
	names := make([]string, 0, len(m.Globals))
	for _, g := range m.Globals {
		names = append(names, g.Name())
	}
	return names
}
