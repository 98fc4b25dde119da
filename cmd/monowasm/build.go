package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"monowasm/internal/assembly"
	"monowasm/internal/buildpipeline"
	"monowasm/internal/config"
	"monowasm/internal/ctxlog"
	"monowasm/internal/paths"
	"monowasm/internal/toolchain"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] <assembly>...",
	Short: "Compile assemblies to index.wasm and index.js",
	Long: `Compile the given assemblies ahead of time into a WebAssembly binary.
The first assembly is the entry assembly unless --entry names another one.
Arguments may be doublestar globs such as bin/**/*.dll.`,
	Args: cobra.MinimumNArgs(1),
	RunE: buildExecution,
}

func init() {
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("output", "o", "", "output directory for index.wasm, index.js and the assemblies")
	flags.String("build-dir", config.DefaultBuildDir, "directory for intermediate files")
	flags.StringP("opt", "O", config.OptDefault.String(), "optimization level (0-3|none|less|default|aggressive)")
	flags.Bool("strip-debug", false, "strip debug information from the WebAssembly binary")
	flags.BoolP("debug", "g", false, "keep debug information in assemblies and generated code")
	flags.BoolP("verbose", "v", false, "log every stage and print timings")
	flags.Bool("incremental", false, "compile each assembly to its own object")
	flags.Int("stack-size", config.DefaultStackSize, "stack size of the WebAssembly binary in bytes")
	flags.Int("jobs", 1, "number of assemblies processed concurrently")
	flags.Bool("force", false, "rebuild every artifact regardless of timestamps")
	flags.String("lib-dir", "", "override the library directory")
	flags.String("bin-dir", "", "override the companion tool directory")
	flags.String("config", "", "path to "+config.FileName+" (default: search upwards from the working directory)")
	flags.String("entry", "", "entry assembly, by path or file name")
	flags.String("ui", "auto", "user interface (auto|on|off)")
	flags.Bool("print-commands", false, "print external tool command lines")
	flags.Bool("watch", false, "rebuild whenever an input assembly changes")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	cleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	entry, err := cmd.Flags().GetString("entry")
	if err != nil {
		return err
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	mode, err := readSwitch("ui", uiValue)
	if err != nil {
		return err
	}

	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}
	dirs, err := installDirs(opts)
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(opts, dirs)
	if err != nil {
		return err
	}

	useTUI := mode.enabled(os.Stdout) && !cfg.Verbose && !cfg.PrintCommands && !quiet
	logger := ctxlog.New(os.Stderr, cfg.Verbose, quiet || useTUI)
	ctx := ctxlog.WithLogger(cmd.Context(), logger)

	b := &builder{
		out: cmd.OutOrStdout(),
		req: &buildpipeline.BuildRequest{
			Config: cfg,
			Inputs: inputs,
			Entry:  entry,
			Runner: &toolchain.ExecRunner{PrintCommands: cfg.PrintCommands, Echo: cmd.OutOrStdout()},
		},
		useTUI:  useTUI,
		timings: timings || cfg.Verbose,
		quiet:   quiet,
	}
	err = b.once(ctx)
	if !watch {
		return err
	}
	if err != nil {
		printError(os.Stderr, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	logger.Info("watching inputs", "count", len(inputs))
	return watchInputs(ctx, inputs, watchDebounce, func(ctx context.Context) {
		if err := b.once(ctx); err != nil {
			printError(os.Stderr, err)
		}
	})
}

type builder struct {
	out     io.Writer
	req     *buildpipeline.BuildRequest
	useTUI  bool
	timings bool
	quiet   bool
}

func (b *builder) once(ctx context.Context) error {
	var (
		res buildpipeline.BuildResult
		err error
	)
	if b.useTUI {
		res, err = runBuildWithUI(ctx, "monowasm build", assembly.Names(b.req.Inputs), b.req)
	} else {
		res, err = buildpipeline.Build(ctx, b.req)
	}
	if b.timings {
		if printErr := printStageTimings(b.out, res); printErr != nil && err == nil {
			err = printErr
		}
	}
	if err != nil || b.quiet {
		return err
	}
	cwd, cwdErr := os.Getwd()
	if cwdErr != nil {
		cwd = ""
	}
	_, err = fmt.Fprintf(b.out, "built %s\n", formatPathForOutput(cwd, res.OutputPath))
	return err
}

// loadOptions layers the defaults, the configuration file and the flags the
// user set explicitly, in that order.
func loadOptions(cmd *cobra.Command) (config.Options, error) {
	opts := config.DefaultOptions()
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return opts, err
	}
	if configPath == "" {
		found, ok, err := config.Find(".")
		if err != nil {
			return opts, err
		}
		if ok {
			configPath = found
		}
	}
	if configPath != "" {
		file, err := config.LoadFile(configPath)
		if err != nil {
			return opts, err
		}
		file.Apply(&opts)
	}
	return opts, applyBuildFlags(cmd, &opts)
}

func applyBuildFlags(cmd *cobra.Command, opts *config.Options) error {
	flags := cmd.Flags()
	var err error
	str := func(name string, dst *string) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetInt(name)
		}
	}
	flag := func(name string, dst *bool) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetBool(name)
		}
	}
	str("output", &opts.OutputDir)
	str("build-dir", &opts.BuildDir)
	str("opt", &opts.Opt)
	str("lib-dir", &opts.LibDir)
	str("bin-dir", &opts.BinDir)
	num("stack-size", &opts.StackSize)
	num("jobs", &opts.Jobs)
	flag("strip-debug", &opts.StripDebug)
	flag("debug", &opts.Debug)
	flag("verbose", &opts.Verbose)
	flag("incremental", &opts.Incremental)
	flag("force", &opts.Force)
	flag("print-commands", &opts.PrintCommands)
	return err
}

// installDirs locates the installation next to the running binary. Explicit
// directory overrides make the lookup optional.
func installDirs(opts config.Options) (paths.Dirs, error) {
	if opts.LibDir != "" && opts.BinDir != "" {
		return paths.Dirs{}, nil
	}
	dirs, err := paths.Self()
	if err != nil && opts.LibDir == "" {
		return dirs, err
	}
	if err != nil {
		return paths.Dirs{}, nil
	}
	return dirs, nil
}

// expandInputs expands doublestar patterns in args. Matches of one pattern
// are sorted; literal paths are passed through so that missing files are
// reported by the pipeline.
func expandInputs(args []string) ([]string, error) {
	var inputs []string
	seen := make(map[string]bool)
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			inputs = append(inputs, arg)
			seen[filepath.Clean(arg)] = true
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no assemblies match %q", arg)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if seen[filepath.Clean(m)] {
				continue
			}
			seen[filepath.Clean(m)] = true
			inputs = append(inputs, m)
		}
	}
	if len(inputs) == 0 {
		return nil, errors.New("no input assemblies")
	}
	return inputs, nil
}
