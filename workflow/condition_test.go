package workflow

import "testing"

func TestEvaluateConditionComparisons(t *testing.T) {
	e := Event{
		Type:         "donation",
		SourceNodeID: "twitch",
		Payload:      map[string]interface{}{"amount": 500.0, "currency": "usd"},
	}

	cases := []struct {
		expr string
		want bool
	}{
		{"event.amount > 100", true},
		{"event.amount > 1000", false},
		{"event.amount >= 500", true},
		{"event.amount <= 499", false},
		{"event.amount == 500", true},
		{"event.amount != 500", false},
		{"event.currency == \"usd\"", true},
		{"event.currency == 'eur'", false},
		{"type == \"donation\"", true},
		{"source == \"twitch\"", true},
		{"event.amount > 100 and event.currency == \"usd\"", true},
		{"event.amount > 100 && event.currency == \"usd\"", true},
		{"event.amount > 1000 or event.currency == \"usd\"", true},
		{"event.amount > 1000 || event.currency == \"usd\"", true},
		{"not (event.amount > 1000)", true},
		{"!(event.amount > 1000)", true},
		{"event.amount === 500", true},
		{"true", true},
		{"false", false},
		{"event.missing == event.alsoMissing", true},
	}

	for _, c := range cases {
		got, err := evaluateCondition(c.expr, e)
		if err != nil {
			t.Errorf("evaluateCondition(%q) error: %v", c.expr, err)
			continue
		}
		if got != c.want {
			t.Errorf("evaluateCondition(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

// TestEvaluateConditionFailsClosed covers spec §7's FilterEvaluationError:
// a predicate that fails to parse yields no-match, never a panic or a
// propagated error.
func TestEvaluateConditionFailsClosed(t *testing.T) {
	e := Event{Type: "x"}
	bad := []string{"event.amount >", "( unterminated", "\"unterminated string", "event.amount $ 1"}
	for _, expr := range bad {
		got, err := evaluateCondition(expr, e)
		if err == nil {
			t.Errorf("evaluateCondition(%q) expected an error", expr)
		}
		if got {
			t.Errorf("evaluateCondition(%q) = true on error, want false (fail-closed)", expr)
		}
	}
}

func TestEventFilterMatchesANDsPatternAndCondition(t *testing.T) {
	f := EventFilter{Pattern: "donation", Condition: "event.amount > 100"}

	ok := f.Matches(Event{Type: "donation", Payload: map[string]interface{}{"amount": 500.0}})
	if !ok {
		t.Error("filter should match: pattern and condition both satisfied")
	}

	ok = f.Matches(Event{Type: "donation", Payload: map[string]interface{}{"amount": 50.0}})
	if ok {
		t.Error("filter should not match: condition unsatisfied")
	}

	ok = f.Matches(Event{Type: "message.received", Payload: map[string]interface{}{"amount": 500.0}})
	if ok {
		t.Error("filter should not match: pattern unsatisfied")
	}
}

func TestEventFilterNoConditionMatchesOnPatternAlone(t *testing.T) {
	f := EventFilter{Pattern: "message.received"}
	if !f.Matches(Event{Type: "message.received"}) {
		t.Error("filter with no condition should match on pattern alone")
	}
}

// TestEventFilterLogsFilterEvaluationError covers spec §7.6: a
// condition that fails to parse/evaluate is reported to the caller's
// log sink as a *FilterEvaluationError, not silently swallowed.
func TestEventFilterLogsFilterEvaluationError(t *testing.T) {
	f := EventFilter{Pattern: "*", Condition: "event.amount >"}
	e := Event{Type: "x", Payload: map[string]interface{}{"amount": 1.0}}

	var logged *FilterEvaluationError
	logf := func(_ string, args ...interface{}) {
		for _, a := range args {
			if fee, ok := a.(*FilterEvaluationError); ok {
				logged = fee
			}
		}
	}

	if f.matchesLogged(e, logf) {
		t.Fatal("a condition that fails to parse must fail-closed (no match)")
	}
	if logged == nil {
		t.Fatal("expected the evaluation failure to be logged as a *FilterEvaluationError")
	}
	if logged.Condition != f.Condition {
		t.Errorf("logged FilterEvaluationError.Condition = %q, want %q", logged.Condition, f.Condition)
	}
}
