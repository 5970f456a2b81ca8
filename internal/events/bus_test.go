package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("demo", []EventType{EventWorkerChanged})

	event := NewEvent(EventWorkerChanged, "scheduler", "demo", PriorityNormal, map[string]interface{}{
		"worker": "worker-1",
	})
	bus.Publish(event)

	select {
	case received := <-ch:
		if received.ID != event.ID {
			t.Errorf("event ID = %s, want %s", received.ID, event.ID)
		}
		if received.Type != EventWorkerChanged {
			t.Errorf("event type = %s, want %s", received.Type, EventWorkerChanged)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("did not receive event within timeout")
	}

	bus.Unsubscribe("demo", ch)
}

func TestBus_FilterByType(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("demo", []EventType{EventTaskChanged})

	taskEvent := NewEvent(EventTaskChanged, "scheduler", "demo", PriorityNormal, map[string]interface{}{
		"taskId": "1",
	})
	bus.Publish(taskEvent)

	select {
	case received := <-ch:
		if received.Type != EventTaskChanged {
			t.Errorf("event type = %s, want %s", received.Type, EventTaskChanged)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("did not receive task event")
	}

	workerEvent := NewEvent(EventWorkerChanged, "scheduler", "demo", PriorityNormal, map[string]interface{}{})
	bus.Publish(workerEvent)

	select {
	case received := <-ch:
		t.Errorf("should not have received event type %s", received.Type)
	case <-time.After(100 * time.Millisecond):
		// expected timeout
	}

	bus.Unsubscribe("demo", ch)
}

func TestBus_BroadcastAll(t *testing.T) {
	bus := NewBus()
	ch1 := bus.Subscribe("demo-1", []EventType{EventSnapshot})
	ch2 := bus.Subscribe("demo-2", []EventType{EventSnapshot})
	ch3 := bus.Subscribe("demo-3", []EventType{EventSnapshot})

	event := NewEvent(EventSnapshot, "scheduler", "all", PriorityNormal, map[string]interface{}{
		"broadcast": true,
	})
	bus.Publish(event)

	for _, ch := range []<-chan Event{ch1, ch2, ch3} {
		select {
		case received := <-ch:
			if received.ID != event.ID {
				t.Errorf("event ID = %s, want %s", received.ID, event.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("did not receive broadcast event")
		}
	}

	bus.Unsubscribe("demo-1", ch1)
	bus.Unsubscribe("demo-2", ch2)
	bus.Unsubscribe("demo-3", ch3)
}

func TestBus_AllSubscriber(t *testing.T) {
	bus := NewBus()
	allCh := bus.Subscribe("all", []EventType{EventSnapshot})
	teamCh := bus.Subscribe("demo", []EventType{EventSnapshot})

	event := NewEvent(EventSnapshot, "scheduler", "demo", PriorityNormal, map[string]interface{}{})
	bus.Publish(event)

	select {
	case received := <-teamCh:
		if received.ID != event.ID {
			t.Errorf("team subscriber: event ID = %s, want %s", received.ID, event.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("team subscriber did not receive event")
	}

	select {
	case received := <-allCh:
		if received.ID != event.ID {
			t.Errorf("all subscriber: event ID = %s, want %s", received.ID, event.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("all subscriber did not receive event")
	}

	bus.Unsubscribe("all", allCh)
	bus.Unsubscribe("demo", teamCh)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("demo", []EventType{EventSnapshot})

	bus.Publish(NewEvent(EventSnapshot, "scheduler", "demo", PriorityNormal, map[string]interface{}{}))
	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("did not receive first event")
	}

	bus.Unsubscribe("demo", ch)
	bus.Publish(NewEvent(EventSnapshot, "scheduler", "demo", PriorityNormal, map[string]interface{}{}))

	select {
	case event, ok := <-ch:
		if ok {
			t.Errorf("should not have received event after unsubscribe: %+v", event)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_MultipleSubscriptionsSameTarget(t *testing.T) {
	bus := NewBus()
	ch1 := bus.Subscribe("demo", []EventType{EventSnapshot})
	ch2 := bus.Subscribe("demo", []EventType{EventSnapshot})

	bus.Publish(NewEvent(EventSnapshot, "scheduler", "demo", PriorityNormal, map[string]interface{}{}))

	select {
	case <-ch1:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("ch1 did not receive event")
	}
	select {
	case <-ch2:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("ch2 did not receive event")
	}

	bus.Unsubscribe("demo", ch1)
	bus.Unsubscribe("demo", ch2)
}

func TestBus_NoTypeFilter(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("demo", nil)

	bus.Publish(NewEvent(EventSnapshot, "scheduler", "demo", PriorityNormal, map[string]interface{}{}))
	bus.Publish(NewEvent(EventTaskChanged, "scheduler", "demo", PriorityNormal, map[string]interface{}{}))
	bus.Publish(NewEvent(EventWorkerChanged, "scheduler", "demo", PriorityNormal, map[string]interface{}{}))

	received := make(map[EventType]bool)
	for i := 0; i < 3; i++ {
		select {
		case event := <-ch:
			received[event.Type] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("did not receive all events")
		}
	}

	for _, want := range []EventType{EventSnapshot, EventTaskChanged, EventWorkerChanged} {
		if !received[want] {
			t.Errorf("did not receive %s event", want)
		}
	}

	bus.Unsubscribe("demo", ch)
}

func TestBus_FullChannelNonBlocking(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("demo", []EventType{EventSnapshot})

	for i := 0; i < 100; i++ {
		bus.Publish(NewEvent(EventSnapshot, "scheduler", "demo", PriorityNormal, map[string]interface{}{"index": i}))
	}

	done := make(chan bool)
	go func() {
		bus.Publish(NewEvent(EventSnapshot, "scheduler", "demo", PriorityNormal, map[string]interface{}{"index": 100}))
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publish blocked on full channel")
	}

	bus.Unsubscribe("demo", ch)
}
