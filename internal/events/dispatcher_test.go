package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversToAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	failure := errors.New("sink down")

	d.Subscribe(EventReservationCreated, func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		return failure
	})
	d.Subscribe(EventReservationCreated, func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventReservationDeleted, func(ctx context.Context, e Event) error {
		calls = append(calls, "deleted")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventReservationCreated, ReservationID: "r1"})
	if !errors.Is(err, failure) {
		t.Fatalf("expected handler error to surface, got %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected calls %v", calls)
	}

	if err := d.Publish(context.Background(), Event{Type: EventReservationCancelled}); err != nil {
		t.Fatalf("publish without listeners: %v", err)
	}
}
