package workflow

import "testing"

// TestQueueDropOnFull covers spec §8 S5 / P7: once the queue is full,
// further Puts are dropped and the counter increments by exactly 1 per
// drop.
func TestQueueDropOnFull(t *testing.T) {
	q := NewBoundedEventQueue(2)

	if !q.Put(QueuedEvent{Event: Event{Type: "a"}}) {
		t.Fatal("first Put should succeed")
	}
	if !q.Put(QueuedEvent{Event: Event{Type: "b"}}) {
		t.Fatal("second Put should succeed")
	}
	for i := 0; i < 3; i++ {
		if q.Put(QueuedEvent{Event: Event{Type: "overflow"}}) {
			t.Fatal("Put should fail once capacity is reached")
		}
	}

	if got := q.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
	if got := q.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2 (bounded by capacity)", got)
	}
}

func TestQueueGetReturnsPutItem(t *testing.T) {
	q := NewBoundedEventQueue(1)
	done := make(chan struct{})
	defer close(done)

	q.Put(QueuedEvent{Event: Event{Type: "hello"}, SourceNodeID: "src"})

	item, ok := q.Get(done)
	if !ok {
		t.Fatal("Get should return the queued item")
	}
	if item.Event.Type != "hello" || item.SourceNodeID != "src" {
		t.Errorf("Get returned %+v, want {Type:hello SourceNodeID:src}", item)
	}
}

func TestQueueGetUnblocksOnDone(t *testing.T) {
	q := NewBoundedEventQueue(1)
	done := make(chan struct{})
	close(done)

	_, ok := q.Get(done)
	if ok {
		t.Error("Get should report ok=false once done is closed with nothing queued")
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewBoundedEventQueue(0)
	accepted := 0
	for i := 0; i < 150; i++ {
		if q.Put(QueuedEvent{Event: Event{Type: "x"}}) {
			accepted++
		}
	}
	if accepted != 100 {
		t.Errorf("accepted = %d, want 100 (default capacity)", accepted)
	}
}

func TestQueueProcessingFlag(t *testing.T) {
	q := NewBoundedEventQueue(1)
	if q.IsProcessing() {
		t.Error("new queue should not be processing")
	}
	q.SetProcessing(true)
	if !q.IsProcessing() {
		t.Error("IsProcessing should reflect SetProcessing(true)")
	}
	q.SetProcessing(false)
	if q.IsProcessing() {
		t.Error("IsProcessing should reflect SetProcessing(false)")
	}
}
