package tui

import (
	"bytes"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// StepStatus represents the current state of a step.
type StepStatus string

const (
	// StatusPending indicates the step is waiting to start.
	StatusPending StepStatus = "Pending"
	// StatusRunning indicates the step is currently resolving.
	StatusRunning StepStatus = "Running"
	// StatusDone indicates the step completed successfully.
	StatusDone StepStatus = "Done"
	// StatusError indicates the step failed.
	StatusError StepStatus = "Error"
)

// StepNode is a single package lookup in the UI list.
type StepNode struct {
	Name   string
	Status StepStatus
	// Detail is the last line of output the step wrote, usually its store path.
	Detail    string
	Err       error
	StartTime time.Time
	EndTime   time.Time
}

// Group holds the steps of one target, e.g. a platform.
type Group struct {
	Target string
	Status StepStatus
	Err    error
	Steps  []*StepNode
}

// step returns the step called name, adding a pending one if the group has none.
func (g *Group) step(name string) *StepNode {
	for _, s := range g.Steps {
		if s.Name == name {
			return s
		}
	}
	s := &StepNode{Name: name, Status: StatusPending}
	g.Steps = append(g.Steps, s)
	return s
}

// Model represents the main TUI state.
type Model struct {
	Groups []*Group
	Width  int

	// RootMap maps root span IDs to the group they represent.
	RootMap map[string]*Group
	// SpanMap maps child span IDs to their step.
	SpanMap map[string]*StepNode
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Interrupt
		}

	case MsgInitSteps:
		g := m.group(msg.Target)
		for _, name := range msg.Steps {
			g.step(name)
		}

	case MsgStepStart:
		m.handleStart(msg)

	case MsgStepLog:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			if line := lastLine(msg.Data); line != "" {
				node.Detail = line
			}
		}

	case MsgStepComplete:
		m.handleComplete(msg)
	}

	return m, nil
}

func (m *Model) handleStart(msg MsgStepStart) {
	if parent, ok := m.RootMap[msg.ParentID]; ok {
		node := parent.step(msg.Name)
		node.Status = StatusRunning
		node.StartTime = msg.StartTime
		m.SpanMap[msg.SpanID] = node
		return
	}

	// Root spans are named after their target, as in "provision x86_64-linux".
	g := m.group(targetOf(msg.Name))
	g.Status = StatusRunning
	m.RootMap[msg.SpanID] = g
}

func (m *Model) handleComplete(msg MsgStepComplete) {
	status := StatusDone
	if msg.Err != nil {
		status = StatusError
	}

	if g, ok := m.RootMap[msg.SpanID]; ok {
		g.Status = status
		g.Err = msg.Err
		return
	}

	if node, ok := m.SpanMap[msg.SpanID]; ok {
		node.Status = status
		node.Err = msg.Err
		node.EndTime = msg.EndTime
	}
}

// group returns the group for target, creating it on first use.
func (m *Model) group(target string) *Group {
	for _, g := range m.Groups {
		if g.Target == target {
			return g
		}
	}
	g := &Group{Target: target, Status: StatusPending}
	m.Groups = append(m.Groups, g)
	return g
}

func targetOf(name string) string {
	if i := strings.LastIndexByte(name, ' '); i >= 0 {
		return name[i+1:]
	}
	return name
}

func lastLine(data []byte) string {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	return strings.TrimSpace(string(lines[len(lines)-1]))
}
