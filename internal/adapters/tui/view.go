package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/devshell/internal/ui/style"
)

// View renders one block per target with a line per package.
// A cache hit starts no steps and leaves nothing on screen.
func (m *Model) View() string {
	if len(m.Groups) == 0 {
		return ""
	}

	var b strings.Builder
	for _, g := range m.Groups {
		b.WriteString(m.line(m.header(g)))
		b.WriteByte('\n')

		width := 0
		for _, s := range g.Steps {
			width = max(width, lipgloss.Width(s.Name))
		}
		for _, s := range g.Steps {
			b.WriteString(m.line(stepLine(s, width)))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m *Model) header(g *Group) string {
	done := 0
	for _, s := range g.Steps {
		if s.Status == StatusDone {
			done++
		}
	}

	title := titleStyle.Render(g.Target)
	if g.Status == StatusError {
		title = failureTitleStyle.Render(g.Target)
	}
	return fmt.Sprintf("%s %s", title, detailStyle.Render(fmt.Sprintf("%d/%d", done, len(g.Steps))))
}

// line truncates s to the terminal width once it is known.
func (m *Model) line(s string) string {
	if m.Width <= 0 {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(m.Width).Render(s)
}

func stepLine(s *StepNode, width int) string {
	name := s.Name + strings.Repeat(" ", width-lipgloss.Width(s.Name))

	switch s.Status {
	case StatusRunning:
		return fmt.Sprintf("  %s %s", stepRunningStyle.Render(style.Dot), stepRunningStyle.Render(name))
	case StatusDone:
		detail := s.Detail
		if d := elapsed(s); d != "" {
			detail = strings.TrimSpace(detail + " " + d)
		}
		return fmt.Sprintf("  %s %s  %s", stepDoneStyle.Render(style.Check), name, detailStyle.Render(detail))
	case StatusError:
		reason := ""
		if s.Err != nil {
			reason, _, _ = strings.Cut(s.Err.Error(), "\n")
		}
		return fmt.Sprintf("  %s %s  %s", stepErrorStyle.Render(style.Cross), name, stepErrorStyle.Render(reason))
	default:
		return fmt.Sprintf("  %s %s", stepPendingStyle.Render(style.Circle), stepPendingStyle.Render(name))
	}
}

func elapsed(s *StepNode) string {
	if s.StartTime.IsZero() || s.EndTime.Before(s.StartTime) {
		return ""
	}
	return "(" + s.EndTime.Sub(s.StartTime).Round(time.Millisecond).String() + ")"
}
