package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/table-reservation/internal/domain"
)

// ErrNotFound is returned when no reservation exists for the requested id.
var ErrNotFound = errors.New("reservation not found")

// ReservationRepository encapsulates reservation persistence.
//
// List methods return reservations newest first. Create and Update must only
// be called from inside WithExclusion for the reservation's slot key so that
// the read-check-write sequence in the service cannot interleave with another
// writer on the same table and date.
type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	// Update rewrites table, date, window and party size. Owner, status and
	// creation time are kept from the stored record.
	Update(ctx context.Context, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	// Cancel atomically moves a reservation to CANCELLED and reports whether
	// this call made the transition. Cancelling an already cancelled
	// reservation returns it unchanged with changed=false.
	Cancel(ctx context.Context, id string) (reservation *domain.Reservation, changed bool, err error)
	Delete(ctx context.Context, id string) error
	ListActiveByTableAndDate(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Reservation, error)
	ListAll(ctx context.Context) ([]domain.Reservation, error)
	// WithExclusion runs fn while holding the exclusion scope for key. The
	// repository passed to fn is bound to that scope; fn's error aborts any
	// writes it made.
	WithExclusion(ctx context.Context, key domain.SlotKey, fn func(ctx context.Context, repo ReservationRepository) error) error
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
