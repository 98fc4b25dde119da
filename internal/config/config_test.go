package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"monowasm/internal/paths"
)

func TestParseOptLevel(t *testing.T) {
	cases := []struct {
		in   string
		want OptLevel
	}{
		{"0", OptNone},
		{"none", OptNone},
		{"-O1", OptLess},
		{"less", OptLess},
		{"", OptDefault},
		{"2", OptDefault},
		{"Default", OptDefault},
		{"3", OptAggressive},
		{"aggressive", OptAggressive},
	}
	for _, tc := range cases {
		got, err := ParseOptLevel(tc.in)
		if err != nil {
			t.Fatalf("ParseOptLevel(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseOptLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseOptLevel("4"); err == nil {
		t.Fatal("expected error for -O4")
	}
	if OptAggressive.Flag() != "-O3" {
		t.Fatalf("Flag() = %q", OptAggressive.Flag())
	}
}

func testDirs(t *testing.T) paths.Dirs {
	t.Helper()
	return paths.Dirs{Lib: t.TempDir(), Bin: t.TempDir()}
}

func TestResolveRequiresOutput(t *testing.T) {
	opts := DefaultOptions()
	_, err := Resolve(opts, testDirs(t))
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Option != "output" {
		t.Fatalf("err = %v, want missing output error", err)
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
		option string
	}{
		{"stack", func(o *Options) { o.StackSize = 0 }, "stack-size"},
		{"jobs", func(o *Options) { o.Jobs = -1 }, "jobs"},
		{"opt", func(o *Options) { o.Opt = "fast" }, "opt"},
		{"build-dollar", func(o *Options) { o.BuildDir = "$HOME/build" }, "build-dir"},
		{"output-dollar", func(o *Options) { o.OutputDir = "out$1" }, "output"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.OutputDir = "out"
			tc.mutate(&opts)
			_, err := Resolve(opts, testDirs(t))
			var cerr *Error
			if !errors.As(err, &cerr) || cerr.Option != tc.option {
				t.Fatalf("err = %v, want error for --%s", err, tc.option)
			}
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = "out"
	dirs := testDirs(t)
	ctx, err := Resolve(opts, dirs)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ctx.Opt != OptDefault || ctx.StackSize != DefaultStackSize || ctx.Jobs != 1 {
		t.Fatalf("unexpected defaults: %+v", ctx)
	}
	if !filepath.IsAbs(ctx.BuildDir) || !filepath.IsAbs(ctx.OutputDir) {
		t.Fatalf("directories must be absolute: %q %q", ctx.BuildDir, ctx.OutputDir)
	}
	if ctx.Triple != DefaultTriple || ctx.Mode() != "whole-program" {
		t.Fatalf("triple=%q mode=%q", ctx.Triple, ctx.Mode())
	}
	if ctx.RuntimeModule() != filepath.Join(dirs.Lib, "runtime.bc") {
		t.Fatalf("RuntimeModule = %q", ctx.RuntimeModule())
	}
	if ctx.Tools.WasmLD != "wasm-ld" {
		t.Fatalf("Tools.WasmLD = %q", ctx.Tools.WasmLD)
	}
}

func TestResolveLibOverrideMustExist(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = "out"
	opts.LibDir = filepath.Join(t.TempDir(), "missing")
	_, err := Resolve(opts, testDirs(t))
	var perr *paths.Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *paths.Error", err)
	}
}

func TestLoadFileAndApply(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, FileName)
	data := `[build]
build_dir = "obj"
opt = "aggressive"
stack_size = 1048576
incremental = true
jobs = 4

[tools]
llc = "llc-17"
minifier = "terser --compress"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write %s: %v", FileName, err)
	}
	sub := filepath.Join(root, "src", "app")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	found, ok, err := Find(sub)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v err=%v", ok, err)
	}
	f, err := LoadFile(found)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	opts := DefaultOptions()
	f.Apply(&opts)
	if opts.BuildDir != filepath.Join(root, "obj") {
		t.Fatalf("BuildDir = %q", opts.BuildDir)
	}
	if opts.Opt != "aggressive" || opts.StackSize != 1048576 || !opts.Incremental || opts.Jobs != 4 {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.Tools.LLC != "llc-17" || opts.Tools.WasmLD != "wasm-ld" || opts.Tools.Minifier != "terser --compress" {
		t.Fatalf("tools = %+v", opts.Tools)
	}
	if opts.OutputDir != "" {
		t.Fatalf("OutputDir must stay unset, got %q", opts.OutputDir)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("[build]\nturbo = true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected unknown key error")
	}
}
