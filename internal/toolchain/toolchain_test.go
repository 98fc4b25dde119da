package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommandString(t *testing.T) {
	cmd := Command{Name: "llc", Args: []string{"-O2", "my file.ll", "-o", "-"}}
	if got := cmd.String(); got != `llc -O2 "my file.ll" -o -` {
		t.Fatalf("String() = %q", got)
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Command: "wasm-ld a.o", ExitCode: 1, Stderr: "undefined symbol: foo\n"}
	if got := err.Error(); got != "wasm-ld a.o: exit status 1: undefined symbol: foo" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestExecRunnerCapturesStdoutAndStderr(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var out bytes.Buffer
	r := &ExecRunner{}
	res, err := r.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "printf obj; printf warn >&2"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "obj" {
		t.Fatalf("stdout = %q", out.String())
	}
	if res.Stderr != "warn" || res.ExitCode != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := &ExecRunner{Stdout: &bytes.Buffer{}}
	_, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 || !strings.Contains(exitErr.Error(), "broken") {
		t.Fatalf("exit error = %v", exitErr)
	}
}

func TestExecRunnerPrintsCommands(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	var echo bytes.Buffer
	r := &ExecRunner{PrintCommands: true, Echo: &echo}
	if _, err := r.Run(context.Background(), Command{Name: "true", Args: []string{"x"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if echo.String() != "true x\n" {
		t.Fatalf("echo = %q", echo.String())
	}
}

func TestLocate(t *testing.T) {
	bin := t.TempDir()
	if err := os.WriteFile(filepath.Join(bin, "llc"), nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := Locate(bin, "llc"); got != filepath.Join(bin, "llc") {
		t.Fatalf("Locate(llc) = %q", got)
	}
	if got := Locate(bin, "wasm-ld"); got != "wasm-ld" {
		t.Fatalf("Locate(wasm-ld) = %q", got)
	}
	if got := Locate(bin, "/usr/bin/mono"); got != "/usr/bin/mono" {
		t.Fatalf("Locate(abs) = %q", got)
	}
}

func TestToolsMerge(t *testing.T) {
	got := Tools{LLC: "llc-17"}.Merge(DefaultTools())
	if got.LLC != "llc-17" || got.WasmLD != "wasm-ld" || got.Minifier != "" {
		t.Fatalf("Merge = %+v", got)
	}
}
