package workflow

import (
	"fmt"
	"sync"
)

// SubscriptionID identifies a live Subscription within one EventBus.
type SubscriptionID uint64

// SubscriptionCallback receives a matched Event. A callback that
// panics is recovered, logged, and skipped; dispatch continues with
// the remaining subscriptions (bus never propagates callback failure).
type SubscriptionCallback func(Event)

type subscription struct {
	id      SubscriptionID
	pattern string
	cb      SubscriptionCallback
	filters []EventFilter
	nodeID  string
}

// EventBus is an in-process pub/sub used by exactly one workflow; it
// is never shared across workflows. Grounded on
// original_source/apps/server/engine/event_bus.py's EventBus class.
type EventBus struct {
	mu      sync.Mutex
	running bool
	subs    []subscription
	nextID  SubscriptionID
	history []Event
	maxHist int
	logf    func(format string, args ...interface{})
}

// NewEventBus constructs a stopped bus with the given bounded history
// length (I6). A nil logf discards log output.
func NewEventBus(maxHistory int, logf func(string, ...interface{})) *EventBus {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &EventBus{maxHist: maxHistory, logf: logf}
}

// ErrAlreadyStarted is returned by Start when the bus is already running.
var ErrAlreadyStarted = fmt.Errorf("workflow: event bus already started")

// Start transitions the bus to running, with empty subscriptions and
// history. Fails with ErrAlreadyStarted if called twice without an
// intervening Stop.
func (b *EventBus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrAlreadyStarted
	}
	b.running = true
	b.subs = nil
	b.history = nil
	return nil
}

// Stop transitions the bus to stopped. After Stop, Emit is a no-op
// that returns 0.
func (b *EventBus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
}

// Subscribe registers callback under pattern, ANDing every attached
// filter. nodeID, when non-empty, allows later bulk removal via Clear.
func (b *EventBus) Subscribe(pattern string, cb SubscriptionCallback, filters []EventFilter, nodeID string) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, pattern: pattern, cb: cb, filters: filters, nodeID: nodeID})
	return id
}

// Unsubscribe removes the subscription with the given id, if any.
func (b *EventBus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Clear drops subscriptions owned by nodeID, or every subscription if
// nodeID is empty.
func (b *EventBus) Clear(nodeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if nodeID == "" {
		b.subs = nil
		return
	}
	kept := b.subs[:0:0]
	for _, s := range b.subs {
		if s.nodeID != nodeID {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// Emit dispatches event to every matching subscription, in
// registration order, and returns how many callbacks ran. After Stop,
// Emit is a no-op returning 0 and logs a warning (P5).
func (b *EventBus) Emit(event Event) int {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		b.logf("event bus: emit %s after stop, dropped", event.Type)
		return 0
	}

	b.history = append(b.history, event)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}

	// Copy the matching subscriptions under the lock, then invoke
	// callbacks outside it so a callback can itself call back into the
	// bus (e.g. subscribe/emit) without deadlocking.
	var matched []subscription
	for _, s := range b.subs {
		if !MatchesPattern(s.pattern, event.Type) {
			continue
		}
		if !allFiltersMatch(s.filters, event, b.logf) {
			continue
		}
		matched = append(matched, s)
	}
	b.mu.Unlock()

	count := 0
	for _, s := range matched {
		if invokeCallback(s.cb, event, b.logf) {
			count++
		}
	}
	return count
}

func invokeCallback(cb SubscriptionCallback, event Event, logf func(string, ...interface{})) (ran bool) {
	defer func() {
		if r := recover(); r != nil {
			logf("event bus: subscriber callback panicked: %v", r)
			ran = false
		}
	}()
	cb(event)
	return true
}

// allFiltersMatch ANDs every filter attached to one subscription,
// logging any FilterEvaluationError through logf (§7.6).
func allFiltersMatch(filters []EventFilter, e Event, logf func(string, ...interface{})) bool {
	for _, f := range filters {
		if !f.matchesLogged(e, logf) {
			return false
		}
	}
	return true
}

// History returns the newest-last history, optionally restricted to a
// type pattern and limited to the last `limit` entries (limit<=0 means
// unlimited, still bounded by maxHist).
func (b *EventBus) History(typePattern string, limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	if typePattern == "" {
		out = append(out, b.history...)
	} else {
		for _, e := range b.history {
			if MatchesPattern(typePattern, e.Type) {
				out = append(out, e)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
