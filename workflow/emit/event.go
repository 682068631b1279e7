// Package emit provides the observability surface for the workflow
// engine: a small Emitter interface and concrete Log/OTel
// implementations that turn the supervisor's log records into log
// lines or trace spans. This is distinct from the domain workflow.Event (the
// pub/sub value object nodes exchange); an emit.Event here is an
// operator-facing record of what the engine itself did.
//
// Grounded on the teacher's graph/emit package.
package emit

import "time"

// Event is one observability record: a log line the supervisor wrote
// for a workflow (node-level or workflow-level), with its level under
// Meta["level"].
type Event struct {
	WorkflowID string
	NodeID     string
	Msg        string
	Meta       map[string]interface{}
	Timestamp  time.Time
}
