package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"monowasm/internal/config"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the build directory",
	Long:  "Remove the directory holding linked assemblies, bitcode, objects and the build state.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	addCleanFlags(cleanCmd)
}

func addCleanFlags(cmd *cobra.Command) {
	cmd.Flags().String("build-dir", config.DefaultBuildDir, "directory for intermediate files")
	cmd.Flags().String("config", "", "path to "+config.FileName)
}

func runClean(cmd *cobra.Command, _ []string) error {
	buildDir, err := cleanTarget(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	info, err := os.Stat(buildDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			_, _ = fmt.Fprintf(out, "build directory not found\n")
			return nil
		}
		return fmt.Errorf("failed to stat %q: %w", buildDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", buildDir)
	}
	if err := os.RemoveAll(buildDir); err != nil {
		return fmt.Errorf("failed to remove %q: %w", buildDir, err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	_, _ = fmt.Fprintf(out, "removed %s\n", formatPathForOutput(cwd, buildDir))
	return nil
}

// cleanTarget picks the build directory the same way build does: the flag,
// then the configuration file, then the default.
func cleanTarget(cmd *cobra.Command) (string, error) {
	opts := config.DefaultOptions()
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if configPath == "" {
		if found, ok, err := config.Find("."); err != nil {
			return "", err
		} else if ok {
			configPath = found
		}
	}
	if configPath != "" {
		file, err := config.LoadFile(configPath)
		if err != nil {
			return "", err
		}
		file.Apply(&opts)
	}
	if cmd.Flags().Changed("build-dir") {
		if opts.BuildDir, err = cmd.Flags().GetString("build-dir"); err != nil {
			return "", err
		}
	}
	if opts.BuildDir == "" {
		return "", &config.Error{Option: "build-dir", Msg: "build directory must not be empty"}
	}
	return filepath.Abs(opts.BuildDir)
}
