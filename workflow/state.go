package workflow

import "time"

// Status is a workflow's lifecycle state (spec §3 WorkflowState, §4.8
// state machine).
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// WorkflowState is the per-workflow record the supervisor holds while
// a workflow is running (spec §3).
type WorkflowState struct {
	Status    Status
	StartedAt time.Time
	Graph     Graph
	LastError error
}

// StatusInfo is GetStatus's return value (spec §4.8 "get_status"):
// the workflow status, plus queue observability when the workflow is
// running in event-driven mode.
type StatusInfo struct {
	Status          Status
	QueueSize       int
	QueueProcessing bool
	QueueDropped    uint64
	LastError       error
}

// NodeStatus values emitted on HostCallbacks.Status (spec §6).
const (
	NodeStatusListening Status = "listening"
	NodeStatusRunning   Status = "running"
	NodeStatusCompleted Status = "completed"
	NodeStatusError     Status = "error"
)
