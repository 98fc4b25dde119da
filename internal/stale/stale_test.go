package stale

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestIsStale(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := filepath.Join(dir, "App.dll")
	dst := filepath.Join(dir, "App.bc")
	touch(t, src, base)

	cases := []struct {
		name    string
		derived *time.Time
		want    bool
	}{
		{"missing derived", nil, true},
		{"derived older", ptr(base.Add(-time.Second)), true},
		{"derived equal", ptr(base), false},
		{"derived newer", ptr(base.Add(time.Second)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Remove(dst)
			if tc.derived != nil {
				touch(t, dst, *tc.derived)
			}
			got, err := IsStale(src, dst)
			if err != nil {
				t.Fatalf("IsStale: %v", err)
			}
			if got != tc.want {
				t.Fatalf("IsStale = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsStaleMissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := IsStale(filepath.Join(dir, "nope.dll"), filepath.Join(dir, "nope.bc")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestAllFresh(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var edges []Edge
	for _, name := range []string{"A", "B", "C"} {
		src := filepath.Join(dir, name+".dll")
		dst := filepath.Join(dir, name+".linked")
		touch(t, src, now)
		touch(t, dst, now.Add(time.Minute))
		edges = append(edges, Edge{Source: src, Derived: dst})
	}
	fresh, err := AllFresh(edges)
	if err != nil {
		t.Fatalf("AllFresh: %v", err)
	}
	if !fresh {
		t.Fatal("expected all fresh")
	}

	touch(t, edges[1].Source, now.Add(time.Hour))
	fresh, err = AllFresh(edges)
	if err != nil {
		t.Fatalf("AllFresh: %v", err)
	}
	if fresh {
		t.Fatal("one stale edge must make the batch stale")
	}
}

func ptr(t time.Time) *time.Time { return &t }
