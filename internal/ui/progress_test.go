package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"monowasm/internal/buildpipeline"
)

func TestProgressTracksStages(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("build", true, []string{"App.exe"}, events).(*progressModel)

	m.applyEvent(buildpipeline.Event{File: "mscorlib.dll", Status: buildpipeline.StatusQueued})
	if len(m.items) != 2 {
		t.Fatalf("items = %d, want late assemblies appended", len(m.items))
	}
	m.applyEvent(buildpipeline.Event{File: "App.exe", Stage: buildpipeline.StageAOT, Status: buildpipeline.StatusWorking})
	if m.items[0].status != "compiling AOT" {
		t.Fatalf("status = %q", m.items[0].status)
	}
	for _, stage := range buildpipeline.Stages(true) {
		m.applyEvent(buildpipeline.Event{File: "App.exe", Stage: stage, Status: buildpipeline.StatusDone})
	}
	if m.items[0].status != "done" {
		t.Fatalf("status = %q", m.items[0].status)
	}
	if got := m.percent(); got != 0.5 {
		t.Fatalf("percent = %v, want 0.5", got)
	}
}

func TestProgressFailure(t *testing.T) {
	m := NewProgressModel("build", false, []string{"App.exe"}, nil).(*progressModel)
	m.applyEvent(buildpipeline.Event{Stage: buildpipeline.StageIRLink, Status: buildpipeline.StatusError})
	m.applyEvent(buildpipeline.Event{File: "App.exe", Stage: buildpipeline.StageIRLink, Status: buildpipeline.StatusError})
	m.done = true
	view := m.View()
	if !strings.Contains(view, "failed: build (linking IR)") || !strings.Contains(view, "error") {
		t.Fatalf("view = %q", view)
	}
}

func TestProgressCtrlCQuits(t *testing.T) {
	m := NewProgressModel("build", false, []string{"App.exe"}, nil).(*progressModel)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !m.done || !m.failed {
		t.Fatalf("ctrl+c: cmd=%v done=%v failed=%v", cmd != nil, m.done, m.failed)
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("ctrl+c must quit the program")
	}
}
