package buildstate

import (
	"errors"
	"os"
	"testing"

	"monowasm/internal/config"
)

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Context{Opt: config.OptAggressive, Triple: config.DefaultTriple, Incremental: true}
	st := New(cfg, []string{"App.exe", "Lib.dll"})
	st.Assemblies = []string{"App.exe", "Lib.dll", "mscorlib.dll"}
	if err := Save(dir, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := Load(dir)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.BuildID != st.BuildID || got.Fingerprint != Fingerprint(cfg) || got.Mode != "incremental" {
		t.Fatalf("loaded %+v, saved %+v", got, st)
	}
	if len(got.Inputs) != 2 || got.Inputs[0] != "App.exe" {
		t.Fatalf("inputs = %v", got.Inputs)
	}
	if len(got.Assemblies) != 3 || got.ManagedFingerprint != ManagedFingerprint(cfg) {
		t.Fatalf("loaded %+v", got)
	}
}

func TestLoadMissing(t *testing.T) {
	_, ok, err := Load(t.TempDir())
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want a quiet miss", ok, err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, New(config.Context{}, nil)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(dir), data[:len(data)-1], 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(dir); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("truncated ledger: err = %v", err)
	}
	if err := os.WriteFile(Path(dir), []byte("nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(dir); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("bad header: err = %v", err)
	}
}

func TestFingerprintTracksCodegenSettings(t *testing.T) {
	base := config.Context{Opt: config.OptDefault, Triple: config.DefaultTriple}
	changed := base
	changed.Opt = config.OptNone
	if Fingerprint(base) == Fingerprint(changed) {
		t.Fatal("opt level must change the fingerprint")
	}
	verbose := base
	verbose.Verbose = true
	if Fingerprint(base) != Fingerprint(verbose) {
		t.Fatal("verbosity must not change the fingerprint")
	}
}

func TestDiff(t *testing.T) {
	cfg := config.Context{Opt: config.OptDefault, Triple: config.DefaultTriple}
	prev := New(cfg, []string{"App.dll", "Lib.dll"})

	cases := []struct {
		name   string
		cfg    func(config.Context) config.Context
		inputs []string
		want   Changes
	}{
		{"same", func(c config.Context) config.Context { return c }, []string{"App.dll", "Lib.dll"}, Changes{}},
		{"removed input", func(c config.Context) config.Context { return c }, []string{"App.dll"}, Changes{Inputs: true}},
		{"opt", func(c config.Context) config.Context { c.Opt = config.OptNone; return c }, []string{"App.dll", "Lib.dll"}, Changes{Objects: true}},
		{"debug", func(c config.Context) config.Context { c.Debug = true; return c }, []string{"App.dll", "Lib.dll"}, Changes{Managed: true, Objects: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := New(tc.cfg(cfg), tc.inputs).Diff(prev); got != tc.want {
				t.Fatalf("Diff = %+v, want %+v", got, tc.want)
			}
		})
	}
}
