package events

import (
	"log/slog"
	"testing"
)

func TestPublishFiltersByCollection(t *testing.T) {
	bus := NewBus(slog.Default())

	tasks, cancelTasks := bus.Subscribe(CollectionTasks)
	defer cancelTasks()
	all, cancelAll := bus.Subscribe("")
	defer cancelAll()

	bus.Publish(Change{Collection: CollectionRewards, Action: ActionCreated, ID: "r1"})
	bus.Publish(Change{Collection: CollectionTasks, Action: ActionUpdated, ID: "t1"})

	select {
	case c := <-tasks:
		if c.ID != "t1" {
			t.Errorf("tasks subscriber got %q, want t1", c.ID)
		}
	default:
		t.Fatal("tasks subscriber received nothing")
	}
	select {
	case c := <-tasks:
		t.Errorf("tasks subscriber got unexpected change %+v", c)
	default:
	}

	if got := len(all); got != 2 {
		t.Errorf("wildcard subscriber buffered %d changes, want 2", got)
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus(slog.Default())
	ch, cancel := bus.Subscribe(CollectionTasks)
	defer cancel()

	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(Change{Collection: CollectionTasks, Action: ActionUpdated})
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered %d, want %d", got, subscriberBuffer)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus(slog.Default())
	ch, cancel := bus.Subscribe(CollectionTasks)

	cancel()
	cancel() // second cancel must not panic

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	if got := bus.SubscriberCount(); got != 0 {
		t.Errorf("subscribers = %d, want 0", got)
	}
	bus.Publish(Change{Collection: CollectionTasks})
}
