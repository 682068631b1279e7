package workflow

import "testing"

// TestMatchesPattern covers spec §4.1's four wildcard shapes plus the
// total wildcard, and asserts P4 (total: never panics for any input).
func TestMatchesPattern(t *testing.T) {
	cases := []struct {
		pattern, typ string
		want         bool
	}{
		{"*", "anything.at.all", true},
		{"audio.generated", "audio.generated", true},
		{"audio.generated", "audio.other", false},
		{"audio.*", "audio.generated", true},
		{"audio.*", "video.generated", false},
		{"*.received", "message.received", true},
		{"*.received", "message.sent", false},
		{"a.*.c", "a.b.c", true},
		{"a.*.c", "a.b.b.c", true},
		{"a.*.c", "a.c", false},
		{"", "", true},
		{"", "x", false},
	}
	for _, c := range cases {
		if got := MatchesPattern(c.pattern, c.typ); got != c.want {
			t.Errorf("MatchesPattern(%q, %q) = %v, want %v", c.pattern, c.typ, got, c.want)
		}
	}
}

func TestMatchesPatternNeverPanics(t *testing.T) {
	weird := []string{"", "*", "**", "...", "*.*.*", "a.b.c.d.*", "[", "(", "\\"}
	for _, p := range weird {
		for _, typ := range weird {
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("MatchesPattern(%q, %q) panicked: %v", p, typ, r)
					}
				}()
				MatchesPattern(p, typ)
			}()
		}
	}
}

func TestEventFilterMatches(t *testing.T) {
	e := Event{Type: "donation", Payload: map[string]interface{}{"amount": 500.0}}

	f := EventFilter{Pattern: "donation", Condition: "event.amount > 100"}
	if !f.Matches(e) {
		t.Fatal("expected filter to match donation with amount 500")
	}

	small := Event{Type: "donation", Payload: map[string]interface{}{"amount": 50.0}}
	if f.Matches(small) {
		t.Fatal("expected filter to reject donation with amount 50")
	}

	wrongType := Event{Type: "message.received", Payload: map[string]interface{}{"amount": 500.0}}
	if f.Matches(wrongType) {
		t.Fatal("expected filter to reject event of the wrong type regardless of condition")
	}
}

func TestEventFilterBadConditionFailsClosed(t *testing.T) {
	f := EventFilter{Pattern: "*", Condition: "event.amount >"}
	e := Event{Type: "x", Payload: map[string]interface{}{"amount": 1.0}}
	if f.Matches(e) {
		t.Fatal("a condition that fails to parse must fail-closed (no match)")
	}
}

// TestAnyFilterMatchesORSemantics covers spec §4.7 step 6 / scenario S4:
// OR across EventFilter entries, AND within one entry's condition.
func TestAnyFilterMatchesORSemantics(t *testing.T) {
	filters := []EventFilter{
		{Pattern: "message.received"},
		{Pattern: "donation", Condition: "event.amount > 100"},
	}

	received := Event{Type: "message.received", Payload: map[string]interface{}{}}
	if !anyFilterMatches(filters, received, nil) {
		t.Error("expected message.received to match the first filter")
	}

	smallDonation := Event{Type: "donation", Payload: map[string]interface{}{"amount": 50.0}}
	if anyFilterMatches(filters, smallDonation, nil) {
		t.Error("expected a donation of 50 to be rejected by the condition")
	}

	bigDonation := Event{Type: "donation", Payload: map[string]interface{}{"amount": 500.0}}
	if !anyFilterMatches(filters, bigDonation, nil) {
		t.Error("expected a donation of 500 to match the second filter")
	}

	unrelated := Event{Type: "timer.tick"}
	if anyFilterMatches(filters, unrelated, nil) {
		t.Error("expected an unrelated event type to match neither filter")
	}

	if !anyFilterMatches(nil, unrelated, nil) {
		t.Error("no declared filters means every event matches")
	}
}
