// Package ui renders build progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"monowasm/internal/buildpipeline"
)

type progressModel struct {
	title      string
	events     <-chan buildpipeline.Event
	stages     []buildpipeline.Stage
	spinner    spinner.Model
	prog       progress.Model
	items      []assemblyItem
	index      map[string]int
	stageLabel string
	width      int
	failed     bool
	done       bool
}

type assemblyItem struct {
	name   string
	status string
	// stages finished for this assembly
	finished int
}

type eventMsg buildpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders pipeline progress.
// Assemblies that only show up once the IL linker ran are appended as their
// first event arrives.
func NewProgressModel(title string, incremental bool, assemblies []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	m := &progressModel{
		title:   title,
		events:  events,
		stages:  buildpipeline.Stages(incremental),
		spinner: sp,
		prog:    prog,
		index:   make(map[string]int, len(assemblies)),
		width:   80,
	}
	for _, name := range assemblies {
		m.add(name)
	}
	return m
}

func (m *progressModel) add(name string) int {
	if idx, ok := m.index[name]; ok {
		return idx
	}
	m.items = append(m.items, assemblyItem{name: name, status: "queued"})
	m.index[name] = len(m.items) - 1
	return len(m.items) - 1
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(buildpipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.done = true
			m.failed = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.stageLabel != "" {
		header = fmt.Sprintf("%s (%s)", header, m.stageLabel)
	}
	switch {
	case m.done && m.failed:
		header = "failed: " + header
	case m.done:
		header = "done: " + header
	default:
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 16
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}
	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%16s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(item.name, nameWidth))
	}

	b.WriteString("\n")
	if m.done && !m.failed {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev buildpipeline.Event) tea.Cmd {
	if ev.File == "" {
		if label := stageLabel(ev.Stage); label != "" {
			m.stageLabel = label
		}
		if ev.Status == buildpipeline.StatusError {
			m.failed = true
		}
		return nil
	}
	idx := m.add(ev.File)
	item := &m.items[idx]
	switch ev.Status {
	case buildpipeline.StatusQueued:
		if item.finished == 0 {
			item.status = "queued"
		}
	case buildpipeline.StatusWorking:
		item.status = stageLabel(ev.Stage)
	case buildpipeline.StatusError:
		item.status = "error"
	case buildpipeline.StatusDone:
		item.finished = m.stagePosition(ev.Stage) + 1
		if item.finished >= len(m.stages) {
			item.status = "done"
		}
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) stagePosition(stage buildpipeline.Stage) int {
	for i, s := range m.stages {
		if s == stage {
			return i
		}
	}
	return 0
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 || len(m.stages) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		total += float64(item.finished) / float64(len(m.stages))
	}
	return total / float64(len(m.items))
}

func stageLabel(stage buildpipeline.Stage) string {
	switch stage {
	case buildpipeline.StageILLink:
		return "linking IL"
	case buildpipeline.StageAOT:
		return "compiling AOT"
	case buildpipeline.StageIRLink:
		return "linking IR"
	case buildpipeline.StageCodegenModules, buildpipeline.StageCodegen:
		return "generating code"
	case buildpipeline.StageStub:
		return "registering"
	case buildpipeline.StageLink:
		return "linking wasm"
	case buildpipeline.StageStrip:
		return "stripping"
	case buildpipeline.StageLoader:
		return "writing loader"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "queued":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
