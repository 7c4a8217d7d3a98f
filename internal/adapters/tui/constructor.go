// Package tui provides an interactive progress view for provisioning.
package tui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/devshell/internal/ui/output"
)

// NewModel creates a new TUI model with default settings.
func NewModel(w io.Writer) Model {
	lipgloss.SetColorProfile(output.New(w).Profile)

	return Model{
		Groups:  make([]*Group, 0),
		RootMap: make(map[string]*Group),
		SpanMap: make(map[string]*StepNode),
	}
}
