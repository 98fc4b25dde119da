// Package config holds the build context: every setting the pipeline reads,
// resolved once and passed by value to each stage.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"monowasm/internal/paths"
	"monowasm/internal/toolchain"
)

// Defaults that apply when neither the command line nor the config file sets
// a value.
const (
	DefaultBuildDir  = "build"
	DefaultStackSize = 2000000
	DefaultTriple    = "wasm32-unknown-unknown"
)

// Error reports a missing or malformed option.
type Error struct {
	Option string
	Msg    string
}

func (e *Error) Error() string {
	if e.Option == "" {
		return e.Msg
	}
	return fmt.Sprintf("--%s: %s", e.Option, e.Msg)
}

// Options is unresolved user input. Later sources override earlier ones:
// defaults, then the config file, then explicit flags.
type Options struct {
	BuildDir      string
	OutputDir     string
	LibDir        string
	BinDir        string
	Opt           string
	StackSize     int
	Jobs          int
	Debug         bool
	StripDebug    bool
	Incremental   bool
	Verbose       bool
	Force         bool
	PrintCommands bool
	Tools         toolchain.Tools
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{
		BuildDir:  DefaultBuildDir,
		Opt:       OptDefault.String(),
		StackSize: DefaultStackSize,
		Jobs:      1,
		Tools:     toolchain.DefaultTools(),
	}
}

// Context is the resolved, read-only build configuration.
type Context struct {
	BuildDir      string
	OutputDir     string
	LibDir        string
	BinDir        string
	Opt           OptLevel
	StackSize     int
	Jobs          int
	Triple        string
	Debug         bool
	StripDebug    bool
	Incremental   bool
	Verbose       bool
	Force         bool
	PrintCommands bool
	Tools         toolchain.Tools
}

// Resolve validates opts and fixes every directory to an absolute path.
// Installation directories come from dirs unless opts overrides them.
func Resolve(opts Options, dirs paths.Dirs) (Context, error) {
	var ctx Context
	if strings.TrimSpace(opts.OutputDir) == "" {
		return ctx, &Error{Option: "output", Msg: "output directory is required"}
	}
	if strings.TrimSpace(opts.BuildDir) == "" {
		return ctx, &Error{Option: "build-dir", Msg: "build directory must not be empty"}
	}
	if opts.StackSize <= 0 {
		return ctx, &Error{Option: "stack-size", Msg: fmt.Sprintf("must be a positive integer, got %d", opts.StackSize)}
	}
	if opts.Jobs <= 0 {
		return ctx, &Error{Option: "jobs", Msg: fmt.Sprintf("must be a positive integer, got %d", opts.Jobs)}
	}
	opt, err := ParseOptLevel(opts.Opt)
	if err != nil {
		return ctx, err
	}

	lib := dirs.Lib
	if opts.LibDir != "" {
		if lib, err = paths.Dir("library", opts.LibDir); err != nil {
			return ctx, err
		}
	}
	bin := dirs.Bin
	if opts.BinDir != "" {
		if bin, err = paths.Dir("binary", opts.BinDir); err != nil {
			return ctx, err
		}
	}
	if lib == "" {
		return ctx, &Error{Option: "lib-dir", Msg: "library directory is not set"}
	}
	// Staleness checks expand environment variables in paths.
	for _, d := range []struct{ option, path string }{
		{"output", opts.OutputDir},
		{"build-dir", opts.BuildDir},
		{"lib-dir", lib},
		{"bin-dir", bin},
	} {
		if strings.Contains(d.path, "$") {
			return ctx, &Error{Option: d.option, Msg: fmt.Sprintf("%q: paths may not contain '$'", d.path)}
		}
	}

	buildDir, err := filepath.Abs(opts.BuildDir)
	if err != nil {
		return ctx, &Error{Option: "build-dir", Msg: err.Error()}
	}
	outputDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return ctx, &Error{Option: "output", Msg: err.Error()}
	}

	return Context{
		BuildDir:      buildDir,
		OutputDir:     outputDir,
		LibDir:        lib,
		BinDir:        bin,
		Opt:           opt,
		StackSize:     opts.StackSize,
		Jobs:          opts.Jobs,
		Triple:        DefaultTriple,
		Debug:         opts.Debug,
		StripDebug:    opts.StripDebug,
		Incremental:   opts.Incremental,
		Verbose:       opts.Verbose,
		Force:         opts.Force,
		PrintCommands: opts.PrintCommands,
		Tools:         opts.Tools.Merge(toolchain.DefaultTools()).In(bin),
	}, nil
}

// Mode names the code generation strategy.
func (c Context) Mode() string {
	if c.Incremental {
		return "incremental"
	}
	return "whole-program"
}

// OutputBinary is the final WebAssembly binary.
func (c Context) OutputBinary() string { return filepath.Join(c.OutputDir, "index.wasm") }

// OutputLoader is the generated loader script.
func (c Context) OutputLoader() string { return filepath.Join(c.OutputDir, "index.js") }

// RuntimeModule is the runtime support IR module shipped in the library
// directory.
func (c Context) RuntimeModule() string { return filepath.Join(c.LibDir, "runtime.bc") }

// LoaderTemplate is the loader script template shipped in the library
// directory.
func (c Context) LoaderTemplate() string { return filepath.Join(c.LibDir, "index.js") }
