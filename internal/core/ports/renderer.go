package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for progress output.
// It decouples telemetry collection from presentation.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Stop flushes any buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	// For synchronous renderers, this may return immediately.
	Wait() error

	// OnPlanEmit is called before the steps for a target start.
	// steps: step names in declaration order
	// target: what the steps produce, e.g. a platform
	OnPlanEmit(steps []string, target string)

	// OnStepStart is called when a step begins.
	// spanID: unique identifier for this step
	// parentID: spanID of the parent step (empty if root)
	OnStepStart(spanID, parentID, name string, startTime time.Time)

	// OnStepLog is called when a step emits output.
	// data may contain partial lines.
	OnStepLog(spanID string, data []byte)

	// OnStepComplete is called when a step finishes.
	// err is nil if the step succeeded.
	OnStepComplete(spanID string, endTime time.Time, err error)
}
