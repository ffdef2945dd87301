package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/table-reservation/internal/domain"
	"github.com/spec-kit/table-reservation/internal/events"
	"github.com/spec-kit/table-reservation/internal/repository"
	"github.com/spec-kit/table-reservation/internal/service"
)

func TestEventForwarderDeliversInBackground(t *testing.T) {
	release := make(chan struct{})
	var delivered atomic.Int32
	handler := func(ctx context.Context, _ events.Event) error {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		delivered.Add(1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	forwarder := NewEventForwarder(handler, 8, time.Minute, zaptest.NewLogger(t))
	forwarder.Start(ctx)

	for i := 0; i < 3; i++ {
		if err := forwarder.Enqueue(context.Background(), events.Event{ID: "evt"}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	close(release)

	deadline := time.Now().Add(5 * time.Second)
	for delivered.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 deliveries, got %d", delivered.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-forwarder.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("delivery loop did not stop")
	}
}

func TestEventForwarderRejectsWhenFull(t *testing.T) {
	forwarder := NewEventForwarder(func(context.Context, events.Event) error { return nil }, 1, 0, nil)

	if err := forwarder.Enqueue(context.Background(), events.Event{ID: "a"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := forwarder.Enqueue(context.Background(), events.Event{ID: "b"}); !errors.Is(err, ErrForwardQueueFull) {
		t.Fatalf("expected ErrForwardQueueFull, got %v", err)
	}
}

func TestEventForwarderBoundsEachDelivery(t *testing.T) {
	result := make(chan error, 1)
	handler := func(ctx context.Context, _ events.Event) error {
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	forwarder := NewEventForwarder(handler, 1, 50*time.Millisecond, nil)
	forwarder.Start(ctx)

	if err := forwarder.Enqueue(context.Background(), events.Event{ID: "evt"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case err := <-result:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delivery was not bounded by its timeout")
	}
}

func TestStalledForwarderDoesNotHoldUpWrites(t *testing.T) {
	stall := make(chan struct{})
	defer close(stall)
	stalled := func(ctx context.Context, _ events.Event) error {
		select {
		case <-stall:
		case <-ctx.Done():
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := zaptest.NewLogger(t)
	forwarder := NewEventForwarder(stalled, 4, time.Minute, nil)
	forwarder.Start(ctx)

	dispatcher := events.NewInMemoryDispatcher()
	StartAuditWorker(service.NewAuditService(dispatcher, logger, forwarder.Enqueue))
	svc := service.NewReservationService(service.ReservationDependencies{
		ReservationRepo: repository.NewMemoryReservationRepository(),
		Dispatcher:      dispatcher,
		Logger:          logger,
		Clock:           func() time.Time { return time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC) },
	})
	owner := domain.Identity{SubjectID: "user-u", Role: domain.RoleUser}

	done := make(chan error, 1)
	go func() {
		// More writes than the queue holds, so some events are dropped.
		for i := 0; i < 10; i++ {
			_, err := svc.Create(context.Background(), owner, service.CreateInput{
				TableID:   "5",
				Date:      domain.NewDate(2025, time.June, 1),
				Start:     domain.NewTimeOfDay(10+i, 0),
				End:       domain.NewTimeOfDay(10+i, 30),
				PartySize: 2,
			})
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writes waited on the stalled forwarder")
	}
}
