// Command monowasm compiles .NET assemblies ahead of time into a WebAssembly
// binary plus the loader script that boots it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"monowasm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:               "monowasm",
	Short:             "Ahead-of-time compiler from .NET assemblies to WebAssembly",
	Long:              `monowasm drives the IL linker, the AOT compiler and the LLVM tools to turn a set of assemblies into index.wasm and index.js`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: applyColorMode,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a runtime execution trace to file")
}

// main executes the root command and exits with status 1 on any error.
func main() {
	rootCmd.Version = version.Version
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func applyColorMode(cmd *cobra.Command, _ []string) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	m, err := readSwitch("color", mode)
	if err != nil {
		return err
	}
	color.NoColor = !m.enabled(os.Stdout)
	return nil
}

var errorLabel = color.New(color.FgRed, color.Bold)

func printError(w io.Writer, err error) {
	_, _ = errorLabel.Fprint(w, "error:")
	_, _ = fmt.Fprintf(w, " %v\n", err)
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
