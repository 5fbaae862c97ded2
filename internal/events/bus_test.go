package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus(WithClock(func() time.Time { return time.Unix(42, 0) }))
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelA()
	defer cancelB()

	bus.Publish(Event{Kind: KindRoomCreated, RoomID: 1, Host: "ada"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case event := <-ch:
			if event.Kind != KindRoomCreated || event.RoomID != 1 {
				t.Fatalf("subscriber %s got unexpected event: %+v", name, event)
			}
			if !event.At.Equal(time.Unix(42, 0)) {
				t.Fatalf("event not stamped with bus clock: %v", event.At)
			}
		default:
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestPublishDropsOnBacklog(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(Event{Kind: KindRoomCreated, RoomID: 1})
	bus.Publish(Event{Kind: KindRoomStarted, RoomID: 1})

	first := <-ch
	if first.Kind != KindRoomCreated {
		t.Fatalf("unexpected first event: %+v", first)
	}
	select {
	case extra := <-ch:
		t.Fatalf("backlogged event should have been dropped, got %+v", extra)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()
	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after cancel")
	}
	// A second cancel is harmless.
	cancel()
	bus.Publish(Event{Kind: KindRoomFinished, RoomID: 2})
}
