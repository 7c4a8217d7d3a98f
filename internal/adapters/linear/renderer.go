// Package linear provides a synchronous, line-buffered renderer for provisioning progress.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/devshell/internal/ui/output"
	"go.trai.ch/devshell/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer with chronological, step-prefixed lines.
// Status lines go to status; step output goes to logs. Neither may be the
// stream an `env` export is written to.
type Renderer struct {
	status io.Writer
	logs   io.Writer
	output *termenv.Output
	quiet  bool

	mu      sync.Mutex
	steps   map[string]*stepState
	buffers map[string]*bytes.Buffer
}

type stepState struct {
	name      string
	startTime time.Time
}

// NewRenderer creates a Renderer. Nil writers default to stderr.
func NewRenderer(status, logs io.Writer) *Renderer {
	if status == nil {
		status = os.Stderr
	}
	if logs == nil {
		logs = os.Stderr
	}

	return &Renderer{
		status:  status,
		logs:    logs,
		output:  output.NewWithProfile(status, output.ColorProfileANSI),
		steps:   make(map[string]*stepState),
		buffers: make(map[string]*bytes.Buffer),
	}
}

// NewQuietRenderer creates a Renderer that only reports failed steps.
func NewQuietRenderer(status io.Writer) *Renderer {
	r := NewRenderer(status, io.Discard)
	r.quiet = true
	return r
}

// Start is a no-op; the renderer writes synchronously.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all remaining buffers.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for spanID := range r.buffers {
		r.flushBufferLocked(spanID)
	}
	return nil
}

// Wait is a no-op.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the packages about to be resolved.
func (r *Renderer) OnPlanEmit(steps []string, target string) {
	if r.quiet {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	heading := r.output.String(fmt.Sprintf("Resolving %d package(s) for %s", len(steps), target)).Bold()
	_, _ = fmt.Fprintf(r.status, "%s %s\n", heading, r.output.String(strings.Join(steps, ", ")).Faint())
}

// OnStepStart records the step and prints a start line.
func (r *Renderer) OnStepStart(spanID, _ /* parentID */, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.steps[spanID] = &stepState{name: name, startTime: startTime}
	r.buffers[spanID] = new(bytes.Buffer)

	if r.quiet {
		return
	}
	prefix := r.output.String(fmt.Sprintf("[%s]", name)).Faint()
	_, _ = fmt.Fprintf(r.status, "%s Starting...\n", prefix)
}

// OnStepLog buffers output and prints complete lines with the step prefix.
func (r *Renderer) OnStepLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step, ok := r.steps[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	buf.Write(data)

	for {
		line, err := buf.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 {
				rest := new(bytes.Buffer)
				rest.Write(line)
				r.buffers[spanID] = rest
			}
			break
		}
		r.printLineLocked(step.name, line)
	}
}

// OnStepComplete flushes the step's output and prints its outcome.
func (r *Renderer) OnStepComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step, ok := r.steps[spanID]
	if !ok {
		return
	}

	r.flushBufferLocked(spanID)

	duration := endTime.Sub(step.startTime).Round(time.Millisecond)
	prefix := fmt.Sprintf("[%s]", step.name)

	switch {
	case err != nil:
		symbol := r.output.String(style.Cross).Foreground(r.output.Color(string(style.Red)))
		_, _ = fmt.Fprintf(r.status, "%s %s Failed after %v: %v\n", prefix, symbol, duration, err)
	case !r.quiet:
		symbol := r.output.String(style.Check).Foreground(r.output.Color(string(style.Green)))
		_, _ = fmt.Fprintf(r.status, "%s %s Completed in %v\n", prefix, symbol, duration)
	}

	delete(r.steps, spanID)
	delete(r.buffers, spanID)
}

// flushBufferLocked must be called with r.mu held.
func (r *Renderer) flushBufferLocked(spanID string) {
	step, ok := r.steps[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	if buf.Len() > 0 {
		r.printLineLocked(step.name, buf.Bytes())
		buf.Reset()
	}
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(stepName string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.logs, "[%s] %s\n", stepName, line)
}
