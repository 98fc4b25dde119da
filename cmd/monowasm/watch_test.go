package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"monowasm/internal/testkit"
)

func TestWatchInputsRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	inputs := testkit.Assemblies(t, dir, "App.dll")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rebuilt := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchInputs(ctx, inputs, 20*time.Millisecond, func(context.Context) {
			rebuilt <- struct{}{}
		})
	}()

	// The watcher starts asynchronously; keep touching the input until it
	// reports a rebuild.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(5 * time.Second)
wait:
	for {
		select {
		case <-rebuilt:
			break wait
		case <-tick.C:
			testkit.WriteFile(t, inputs[0], "MZ changed")
			testkit.WriteFile(t, filepath.Join(dir, "unrelated.txt"), "x")
		case <-deadline:
			t.Fatal("no rebuild after the input changed")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watchInputs: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchInputs did not stop after cancel")
	}
}
