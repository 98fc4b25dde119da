package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"monowasm/internal/toolchain"
)

// FileName is the project configuration file looked up from the working
// directory upwards.
const FileName = "monowasm.toml"

// File is the decoded project configuration.
type File struct {
	Path  string          `toml:"-"`
	Build BuildSection    `toml:"build"`
	Tools toolchain.Tools `toml:"tools"`

	meta toml.MetaData
}

// BuildSection mirrors the build options of the command line.
type BuildSection struct {
	BuildDir    string `toml:"build_dir"`
	Output      string `toml:"output"`
	Opt         string `toml:"opt"`
	StackSize   int    `toml:"stack_size"`
	Jobs        int    `toml:"jobs"`
	Incremental bool   `toml:"incremental"`
	StripDebug  bool   `toml:"strip_debug"`
	Debug       bool   `toml:"debug"`
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadFile decodes the configuration file at path.
func LoadFile(path string) (*File, error) {
	f := &File{Path: path}
	meta, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0].String())
	}
	f.meta = meta
	if meta.IsDefined("build", "stack_size") && f.Build.StackSize <= 0 {
		return nil, fmt.Errorf("%s: [build].stack_size must be positive", path)
	}
	if meta.IsDefined("build", "jobs") && f.Build.Jobs <= 0 {
		return nil, fmt.Errorf("%s: [build].jobs must be positive", path)
	}
	return f, nil
}

// Apply copies every key present in the file onto opts. Relative directories
// are taken relative to the file.
func (f *File) Apply(opts *Options) {
	if f == nil || opts == nil {
		return
	}
	root := filepath.Dir(f.Path)
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	if f.meta.IsDefined("build", "build_dir") {
		opts.BuildDir = rel(f.Build.BuildDir)
	}
	if f.meta.IsDefined("build", "output") {
		opts.OutputDir = rel(f.Build.Output)
	}
	if f.meta.IsDefined("build", "opt") {
		opts.Opt = f.Build.Opt
	}
	if f.meta.IsDefined("build", "stack_size") {
		opts.StackSize = f.Build.StackSize
	}
	if f.meta.IsDefined("build", "jobs") {
		opts.Jobs = f.Build.Jobs
	}
	if f.meta.IsDefined("build", "incremental") {
		opts.Incremental = f.Build.Incremental
	}
	if f.meta.IsDefined("build", "strip_debug") {
		opts.StripDebug = f.Build.StripDebug
	}
	if f.meta.IsDefined("build", "debug") {
		opts.Debug = f.Build.Debug
	}
	opts.Tools = f.Tools.Merge(opts.Tools)
}
