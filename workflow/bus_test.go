package workflow

import (
	"testing"
	"time"
)

func TestBusEmitDispatchesInRegistrationOrder(t *testing.T) {
	bus := NewEventBus(10, nil)
	_ = bus.Start()

	var order []int
	bus.Subscribe("audio.*", func(Event) { order = append(order, 1) }, nil, "")
	bus.Subscribe("audio.*", func(Event) { order = append(order, 2) }, nil, "")
	bus.Subscribe("*", func(Event) { order = append(order, 3) }, nil, "")

	count := bus.Emit(Event{Type: "audio.generated"})
	if count != 3 {
		t.Fatalf("Emit count = %d, want 3", count)
	}
	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// TestBusEmitAfterStopIsNoop covers P5: emit after stop returns 0 and
// has no side effects.
func TestBusEmitAfterStopIsNoop(t *testing.T) {
	bus := NewEventBus(10, nil)
	_ = bus.Start()
	ran := false
	bus.Subscribe("*", func(Event) { ran = true }, nil, "")
	bus.Stop()

	count := bus.Emit(Event{Type: "anything"})
	if count != 0 {
		t.Errorf("Emit after stop = %d, want 0", count)
	}
	if ran {
		t.Error("subscriber ran after stop")
	}
}

func TestBusSecondStartFails(t *testing.T) {
	bus := NewEventBus(10, nil)
	if err := bus.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := bus.Start(); err != ErrAlreadyStarted {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestBusCallbackPanicIsSkippedNotPropagated(t *testing.T) {
	bus := NewEventBus(10, nil)
	_ = bus.Start()

	ranAfter := false
	bus.Subscribe("*", func(Event) { panic("boom") }, nil, "")
	bus.Subscribe("*", func(Event) { ranAfter = true }, nil, "")

	count := bus.Emit(Event{Type: "x"})
	if count != 1 {
		t.Errorf("Emit count = %d, want 1 (panicking subscriber doesn't count)", count)
	}
	if !ranAfter {
		t.Error("dispatch did not continue past a panicking callback")
	}
}

func TestBusClearByNodeID(t *testing.T) {
	bus := NewEventBus(10, nil)
	_ = bus.Start()

	var aRan, bRan bool
	bus.Subscribe("*", func(Event) { aRan = true }, nil, "node-a")
	bus.Subscribe("*", func(Event) { bRan = true }, nil, "node-b")

	bus.Clear("node-a")
	bus.Emit(Event{Type: "x"})

	if aRan {
		t.Error("node-a's subscription should have been cleared")
	}
	if !bRan {
		t.Error("node-b's subscription should still be active")
	}
}

// TestBusHistoryBounded covers P6/I6: history never exceeds the
// configured maximum.
func TestBusHistoryBounded(t *testing.T) {
	bus := NewEventBus(3, nil)
	_ = bus.Start()

	for i := 0; i < 10; i++ {
		bus.Emit(Event{Type: "tick"})
	}

	hist := bus.History("", 0)
	if len(hist) != 3 {
		t.Fatalf("History length = %d, want 3", len(hist))
	}
}

func TestBusHistoryFilterByPattern(t *testing.T) {
	bus := NewEventBus(100, nil)
	_ = bus.Start()

	bus.Emit(Event{Type: "audio.generated"})
	bus.Emit(Event{Type: "avatar.moved"})
	bus.Emit(Event{Type: "audio.stopped"})

	hist := bus.History("audio.*", 0)
	if len(hist) != 2 {
		t.Fatalf("filtered history length = %d, want 2", len(hist))
	}
}

func TestBusFiltersAreANDed(t *testing.T) {
	bus := NewEventBus(10, nil)
	_ = bus.Start()

	var fired int
	filters := []EventFilter{
		{Pattern: "donation"},
		{Pattern: "donation", Condition: "event.amount > 100"},
	}
	bus.Subscribe("donation", func(Event) { fired++ }, filters, "")

	bus.Emit(Event{Type: "donation", Payload: map[string]interface{}{"amount": 50.0}})
	bus.Emit(Event{Type: "donation", Payload: map[string]interface{}{"amount": 500.0}})

	if fired != 1 {
		t.Errorf("fired = %d, want 1 (only the second donation clears both filters)", fired)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(10, nil)
	_ = bus.Start()

	ran := false
	id := bus.Subscribe("*", func(Event) { ran = true }, nil, "")
	bus.Unsubscribe(id)
	bus.Emit(Event{Type: "x"})

	if ran {
		t.Error("unsubscribed callback still ran")
	}
}

func TestBusReentrantEmitDoesNotDeadlock(t *testing.T) {
	bus := NewEventBus(10, nil)
	_ = bus.Start()

	done := make(chan struct{})
	bus.Subscribe("first", func(Event) {
		bus.Subscribe("second", func(Event) { close(done) }, nil, "")
		bus.Emit(Event{Type: "second"})
	}, nil, "")

	bus.Emit(Event{Type: "first"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reentrant subscribe/emit from within a callback deadlocked")
	}
}
