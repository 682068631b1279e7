// Package workflow implements the workflow execution engine: the
// per-workflow event bus, the linear and event-driven runners, the
// node lifecycle, and the supervisor that ties them together.
package workflow

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Event is an immutable value dispatched through an EventBus. Once
// emitted, an Event is never mutated; NodeContext.Emit stamps SourceNodeID and
// Timestamp on a copy before publishing.
type Event struct {
	Type         string
	Payload      map[string]interface{}
	SourceNodeID string
	Timestamp    time.Time
}

// EventFilter matches an Event against a routing Pattern and an
// optional boolean Condition evaluated by the expression evaluator in
// condition.go.
type EventFilter struct {
	Pattern   string
	Condition string
}

var patternCache = struct {
	mu sync.RWMutex
	m  map[string]*regexp.Regexp
}{m: make(map[string]*regexp.Regexp)}

// MatchesPattern reports whether typ satisfies pattern. Total: never
// panics for any pattern/type pair (P4).
func MatchesPattern(pattern, typ string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == typ {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	re := compilePattern(pattern)
	return re.MatchString(typ)
}

func compilePattern(pattern string) *regexp.Regexp {
	patternCache.mu.RLock()
	re, ok := patternCache.m[pattern]
	patternCache.mu.RUnlock()
	if ok {
		return re
	}

	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	re = regexp.MustCompile(b.String())

	patternCache.mu.Lock()
	patternCache.m[pattern] = re
	patternCache.mu.Unlock()
	return re
}

// Matches reports whether the filter accepts event e: the pattern must
// match e.Type, and if a Condition is present it must evaluate true.
// A condition that fails to parse or evaluate yields no match
// (fail-closed, FilterEvaluationError is logged by the caller via
// matchesLogged).
func (f EventFilter) Matches(e Event) bool {
	return f.matchesLogged(e, nil)
}

// matchesLogged is Matches with an optional log sink: a condition that
// fails to parse or evaluate is recorded as a FilterEvaluationError and
// passed to logf at debug/warning (§7.6), still yielding no match
// (fail-closed). logf may be nil, in which case the failure is silent
// (used by tests that only care about the boolean result).
func (f EventFilter) matchesLogged(e Event, logf func(string, ...interface{})) bool {
	if !MatchesPattern(f.Pattern, e.Type) {
		return false
	}
	if f.Condition == "" {
		return true
	}
	ok, err := evaluateCondition(f.Condition, e)
	if err != nil {
		if logf != nil {
			evalErr := &FilterEvaluationError{Condition: f.Condition, Cause: err}
			logf("workflow: %v", evalErr)
		}
		return false
	}
	return ok
}

// anyFilterMatches implements the OR-across-filters / AND-within-filter
// semantics used by eventFilters declared on a node (spec §4.7 step 6).
// logf, when non-nil, receives a FilterEvaluationError for any
// condition that fails to parse or evaluate.
func anyFilterMatches(filters []EventFilter, e Event, logf func(string, ...interface{})) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.matchesLogged(e, logf) {
			return true
		}
	}
	return false
}
