package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/devshell/internal/core/ports"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer wraps the TUI Bubble Tea model as a ports.Renderer.
type Renderer struct {
	program *tea.Program
	model   *Model
	errCh   chan error
}

// NewRenderer creates a new TUI renderer.
func NewRenderer(model *Model, opts ...tea.ProgramOption) *Renderer {
	program := tea.NewProgram(model, opts...)
	return &Renderer{
		program: program,
		model:   model,
		errCh:   make(chan error, 1),
	}
}

// Start launches the TUI in a background goroutine.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		r.errCh <- err
	}()
	return nil
}

// Stop signals the TUI to quit. The final frame stays on screen.
func (r *Renderer) Stop() error {
	r.program.Quit()
	return nil
}

// Wait blocks until the TUI has terminated.
// A program killed by its context is not an error; the canceled work reports it.
func (r *Renderer) Wait() error {
	err := <-r.errCh
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// OnPlanEmit forwards the package list of a target to the TUI.
func (r *Renderer) OnPlanEmit(steps []string, target string) {
	r.program.Send(MsgInitSteps{Steps: steps, Target: target})
}

// OnStepStart forwards step start events to the TUI.
func (r *Renderer) OnStepStart(spanID, parentID, name string, startTime time.Time) {
	r.program.Send(MsgStepStart{
		SpanID:    spanID,
		ParentID:  parentID,
		Name:      name,
		StartTime: startTime,
	})
}

// OnStepLog forwards step output to the TUI.
func (r *Renderer) OnStepLog(spanID string, data []byte) {
	r.program.Send(MsgStepLog{SpanID: spanID, Data: data})
}

// OnStepComplete forwards step completion events to the TUI.
func (r *Renderer) OnStepComplete(spanID string, endTime time.Time, err error) {
	r.program.Send(MsgStepComplete{SpanID: spanID, EndTime: endTime, Err: err})
}

// Program returns the underlying tea.Program for testing.
func (r *Renderer) Program() *tea.Program {
	return r.program
}
