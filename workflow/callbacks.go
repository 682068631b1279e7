package workflow

import (
	"fmt"
	"log"
)

// HostCallbacks is the three-slot notification surface the host
// registers per workflow (C12, spec §4.9 and §6). Every slot is
// optional; the engine treats a nil slot as "do nothing" and any
// panic/slot failure as non-fatal (CallbackError, §7.5).
type HostCallbacks struct {
	// Log is called for every node-originated and supervisor-originated
	// log line.
	Log func(nodeID, message, level string)

	// Status is called on every node status transition: "listening",
	// "running", "completed", "error". data may carry "outputs" on
	// completion or "error" on failure.
	Status func(nodeID, status string, data map[string]interface{})

	// Event is called for every bus event matching the host-visible
	// prefixes registered at Start (audio.*, avatar.*, subtitle by
	// default — spec §4.8 step 2, §6).
	Event func(event Event)
}

// hostLog safely invokes cb.Log, swallowing a panic as CallbackError.
func (cb HostCallbacks) hostLog(nodeID, message, level string) {
	if cb.Log == nil {
		return
	}
	defer recoverCallback("log")
	cb.Log(nodeID, message, level)
}

// hostStatus safely invokes cb.Status.
func (cb HostCallbacks) hostStatus(nodeID, status string, data map[string]interface{}) {
	if cb.Status == nil {
		return
	}
	defer recoverCallback("status")
	cb.Status(nodeID, status, data)
}

// hostEvent safely invokes cb.Event.
func (cb HostCallbacks) hostEvent(event Event) {
	if cb.Event == nil {
		return
	}
	defer recoverCallback("event")
	cb.Event(event)
}

// recoverCallback turns a panicking host callback into a swallowed
// CallbackError (§7.5: "Always swallowed and logged"). There is no
// per-workflow log sink left to trust once a callback itself panics,
// so the failure goes to the standard logger as a last resort rather
// than being dropped silently.
func recoverCallback(slot string) {
	if r := recover(); r != nil {
		err := &CallbackError{Slot: slot, Cause: fmt.Errorf("panic: %v", r)}
		log.Print(err)
	}
}
