package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestRenderVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	info := versionInfo{Version: "1.2.3", GitCommit: "abc123"}
	if err := renderVersionJSON(&buf, info, true); err != nil {
		t.Fatal(err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if payload.Tool != "monowasm" || payload.Version != "1.2.3" || payload.GitCommit != "abc123" || payload.BuildDate != "unknown" {
		t.Fatalf("payload = %+v", payload)
	}

	buf.Reset()
	if err := renderVersionJSON(&buf, info, false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "git_commit") {
		t.Fatalf("short form leaked commit: %s", buf.String())
	}
}

func TestRenderVersionPretty(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	var buf bytes.Buffer
	if err := renderVersionPretty(&buf, versionInfo{Version: "0.3.0"}, true); err != nil {
		t.Fatal(err)
	}
	want := "monowasm 0.3.0\ncommit: unknown\nbuilt:  unknown\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintError(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	var buf bytes.Buffer
	printError(&buf, errTest("link: wasm-ld failed"))
	if buf.String() != "error: link: wasm-ld failed\n" {
		t.Fatalf("got %q", buf.String())
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
