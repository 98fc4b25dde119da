package ctxlog

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, false)
	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("stage done", "stage", "aot")
	if !strings.Contains(buf.String(), "stage=aot") {
		t.Fatalf("log output = %q", buf.String())
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected fallback logger")
	}
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false, true).Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("quiet logger wrote %q", buf.String())
	}
	New(&buf, true, false).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("verbose logger dropped debug record")
	}
}
