package tui

import "time"

// MsgInitSteps announces the packages about to be resolved for a target.
type MsgInitSteps struct {
	Steps  []string
	Target string
}

// MsgStepStart is sent when a span starts.
type MsgStepStart struct {
	SpanID    string
	ParentID  string
	Name      string
	StartTime time.Time
}

// MsgStepLog carries output written to a span.
type MsgStepLog struct {
	SpanID string
	Data   []byte
}

// MsgStepComplete is sent when a span ends.
type MsgStepComplete struct {
	SpanID  string
	EndTime time.Time
	Err     error
}
