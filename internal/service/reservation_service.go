package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/table-reservation/internal/access"
	"github.com/spec-kit/table-reservation/internal/domain"
	"github.com/spec-kit/table-reservation/internal/events"
	"github.com/spec-kit/table-reservation/internal/repository"
	"github.com/spec-kit/table-reservation/pkg/util/errorutil"
)

const (
	maxTableIDLength = 64
	// updateAttempts bounds retries when a concurrent edit moves the record
	// to another table or date between the initial read and the locked re-read.
	updateAttempts = 3
)

var errSlotMoved = errors.New("reservation moved to another slot")

// ReservationService coordinates reservation workflows. Every entry point takes
// the verified identity of the caller and consults the access gate before the
// store is touched.
type ReservationService struct {
	reservations repository.ReservationRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	location     *time.Location
	now          func() time.Time
	newID        func() string
}

// ReservationDependencies bundles collaborators for the reservation service.
type ReservationDependencies struct {
	ReservationRepo repository.ReservationRepository
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	// Location decides which calendar day is "today". Defaults to UTC.
	Location *time.Location
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// CreateInput describes a new reservation.
type CreateInput struct {
	TableID   string
	Date      domain.Date
	Start     domain.TimeOfDay
	End       domain.TimeOfDay
	PartySize int
}

// UpdateInput describes an admin edit. Nil fields keep their stored value.
type UpdateInput struct {
	TableID   *string
	Date      *domain.Date
	Start     *domain.TimeOfDay
	End       *domain.TimeOfDay
	PartySize *int
}

func (in UpdateInput) empty() bool {
	return in.TableID == nil && in.Date == nil && in.Start == nil && in.End == nil && in.PartySize == nil
}

func (in UpdateInput) apply(base domain.Reservation) domain.Reservation {
	if in.TableID != nil {
		base.TableID = strings.TrimSpace(*in.TableID)
	}
	if in.Date != nil {
		base.Date = *in.Date
	}
	if in.Start != nil {
		base.StartTime = *in.Start
	}
	if in.End != nil {
		base.EndTime = *in.End
	}
	if in.PartySize != nil {
		base.PartySize = *in.PartySize
	}
	return base
}

// NewReservationService constructs the service.
func NewReservationService(deps ReservationDependencies) *ReservationService {
	svc := &ReservationService{
		reservations: deps.ReservationRepo,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		location:     deps.Location,
		now:          deps.Clock,
		newID:        uuid.NewString,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.location == nil {
		svc.location = time.UTC
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Create books a table for the caller. The conflict check and the insert run
// in one exclusion scope for the table and date.
func (s *ReservationService) Create(ctx context.Context, identity domain.Identity, input CreateInput) (*domain.Reservation, error) {
	if err := s.authorize(identity, access.OpCreate, "", ""); err != nil {
		return nil, err
	}

	reservation := &domain.Reservation{
		ID:        s.newID(),
		OwnerID:   identity.SubjectID,
		TableID:   strings.TrimSpace(input.TableID),
		Date:      input.Date,
		StartTime: input.Start,
		EndTime:   input.End,
		PartySize: input.PartySize,
		Status:    domain.ReservationStatusActive,
		CreatedAt: s.now().UTC(),
	}
	if err := s.validate(reservation); err != nil {
		return nil, err
	}

	err := s.reservations.WithExclusion(ctx, reservation.Key(), func(ctx context.Context, repo repository.ReservationRepository) error {
		existing, err := repo.ListActiveByTableAndDate(ctx, reservation.Key())
		if err != nil {
			return err
		}
		if conflict := FindConflict(reservation.Window(), existing, ""); conflict != nil {
			return conflictError(reservation.Key(), conflict)
		}
		return repo.Create(ctx, reservation)
	})
	if err != nil {
		return nil, s.translate(err, reservation.ID)
	}

	s.logger.Info("reservation created",
		zap.String("reservation_id", reservation.ID),
		zap.String("owner_id", reservation.OwnerID),
		zap.String("slot", reservation.Key().String()))
	s.publishEvent(ctx, identity, events.EventReservationCreated, reservation.ID, events.SnapshotOf(reservation))
	return reservation, nil
}

// Get returns one reservation to its owner or to an admin.
func (s *ReservationService) Get(ctx context.Context, identity domain.Identity, reservationID string) (*domain.Reservation, error) {
	return s.loadAuthorized(ctx, identity, access.OpGet, reservationID)
}

// Cancel moves a reservation to CANCELLED. Cancelling an already cancelled
// reservation succeeds and returns it unchanged.
// The ownership check runs outside the slot lock; it stays valid because
// OwnerID is never rewritten after creation.
func (s *ReservationService) Cancel(ctx context.Context, identity domain.Identity, reservationID string) (*domain.Reservation, error) {
	current, err := s.loadAuthorized(ctx, identity, access.OpCancel, reservationID)
	if err != nil {
		return nil, err
	}
	if !current.IsActive() {
		return current, nil
	}

	cancelled, changed, err := s.reservations.Cancel(ctx, reservationID)
	if err != nil {
		return nil, s.translate(err, reservationID)
	}
	if changed {
		s.logger.Info("reservation cancelled",
			zap.String("reservation_id", reservationID),
			zap.String("actor_id", identity.SubjectID))
		s.publishEvent(ctx, identity, events.EventReservationCancelled, reservationID, events.SnapshotOf(cancelled))
	}
	return cancelled, nil
}

// ListOwn returns every reservation owned by the caller, newest first.
func (s *ReservationService) ListOwn(ctx context.Context, identity domain.Identity) ([]domain.Reservation, error) {
	if err := s.authorize(identity, access.OpListOwn, "", ""); err != nil {
		return nil, err
	}
	items, err := s.reservations.ListByOwner(ctx, identity.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("list reservations for %s: %w", identity.SubjectID, err)
	}
	return items, nil
}

// ListAll returns every reservation in the system, cancelled ones included.
func (s *ReservationService) ListAll(ctx context.Context, identity domain.Identity) ([]domain.Reservation, error) {
	if err := s.authorize(identity, access.OpListAll, "", ""); err != nil {
		return nil, err
	}
	items, err := s.reservations.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return items, nil
}

// AdminUpdate edits a reservation. The merged record is validated like a new
// one and, if still active, checked against the other active reservations of
// its target table and date. A conflict leaves the stored record untouched.
func (s *ReservationService) AdminUpdate(ctx context.Context, identity domain.Identity, reservationID string, input UpdateInput) (*domain.Reservation, error) {
	if err := s.authorize(identity, access.OpAdminUpdate, "", reservationID); err != nil {
		return nil, err
	}
	if input.empty() {
		return nil, errorutil.NewInvalidInput("no fields to update", nil)
	}

	current, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, s.translate(err, reservationID)
	}

	var before, after domain.Reservation
	for attempt := 0; ; attempt++ {
		candidate := input.apply(*current)
		if err := s.validate(&candidate); err != nil {
			return nil, err
		}

		key := candidate.Key()
		err = s.reservations.WithExclusion(ctx, key, func(ctx context.Context, repo repository.ReservationRepository) error {
			fresh, err := repo.GetByID(ctx, reservationID)
			if err != nil {
				return err
			}
			merged := input.apply(*fresh)
			if !merged.Key().Equal(key) {
				current = fresh
				return errSlotMoved
			}
			if err := s.validate(&merged); err != nil {
				return err
			}
			if merged.IsActive() {
				existing, err := repo.ListActiveByTableAndDate(ctx, key)
				if err != nil {
					return err
				}
				if conflict := FindConflict(merged.Window(), existing, reservationID); conflict != nil {
					return conflictError(key, conflict)
				}
			}
			if err := repo.Update(ctx, &merged); err != nil {
				return err
			}
			before, after = *fresh, merged
			return nil
		})
		if errors.Is(err, errSlotMoved) && attempt+1 < updateAttempts {
			continue
		}
		break
	}
	if errors.Is(err, errSlotMoved) {
		return nil, errorutil.NewConflict("reservation was modified concurrently", map[string]any{"reservation_id": reservationID})
	}
	if err != nil {
		return nil, s.translate(err, reservationID)
	}

	s.logger.Info("reservation updated",
		zap.String("reservation_id", reservationID),
		zap.String("actor_id", identity.SubjectID),
		zap.String("slot", after.Key().String()))
	s.publishEvent(ctx, identity, events.EventReservationUpdated, reservationID, events.ReservationUpdatedPayload{
		Before: events.SnapshotOf(&before),
		After:  events.SnapshotOf(&after),
	})
	return &after, nil
}

// AdminDelete permanently removes a reservation.
func (s *ReservationService) AdminDelete(ctx context.Context, identity domain.Identity, reservationID string) error {
	if err := s.authorize(identity, access.OpAdminDelete, "", reservationID); err != nil {
		return err
	}
	current, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return s.translate(err, reservationID)
	}
	if err := s.reservations.Delete(ctx, reservationID); err != nil {
		return s.translate(err, reservationID)
	}

	s.logger.Info("reservation deleted",
		zap.String("reservation_id", reservationID),
		zap.String("actor_id", identity.SubjectID))
	s.publishEvent(ctx, identity, events.EventReservationDeleted, reservationID, events.SnapshotOf(current))
	return nil
}

// loadAuthorized fetches a reservation and checks the caller against its
// owner. A missing id is NotFound for every caller. Owners never change, so
// the fetched owner is the one any later mutation will see.
func (s *ReservationService) loadAuthorized(ctx context.Context, identity domain.Identity, op access.Operation, reservationID string) (*domain.Reservation, error) {
	if identity.SubjectID == "" || !identity.Role.Valid() {
		return nil, s.authorize(identity, op, "", reservationID)
	}
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, s.translate(err, reservationID)
	}
	if err := s.authorize(identity, op, res.OwnerID, reservationID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ReservationService) authorize(identity domain.Identity, op access.Operation, targetOwnerID, reservationID string) error {
	if access.Authorize(identity, op, targetOwnerID).Allowed() {
		return nil
	}
	s.logger.Warn("access denied",
		zap.String("subject_id", identity.SubjectID),
		zap.String("role", string(identity.Role)),
		zap.String("operation", string(op)),
		zap.String("reservation_id", reservationID))
	return errorutil.NewForbidden(fmt.Sprintf("operation %s not permitted", op))
}

// validate applies the rules shared by create and admin update.
func (s *ReservationService) validate(res *domain.Reservation) error {
	fields := map[string]any{}
	switch {
	case res.TableID == "":
		fields["table_id"] = "required"
	case len(res.TableID) > maxTableIDLength:
		fields["table_id"] = fmt.Sprintf("must be at most %d characters", maxTableIDLength)
	}
	if res.PartySize <= 0 {
		fields["party_size"] = "must be greater than zero"
	}
	if !res.StartTime.Valid() || res.StartTime >= domain.MinutesPerDay {
		fields["start_time"] = "must be between 00:00 and 23:59"
	}
	if !res.EndTime.Valid() {
		fields["end_time"] = "must be between 00:01 and 24:00"
	} else if res.EndTime <= res.StartTime {
		fields["end_time"] = "must be after start_time"
	}
	if res.Date.IsZero() {
		fields["date"] = "required"
	} else if today := domain.DateOf(s.now().In(s.location)); res.Date.Before(today) {
		fields["date"] = "must not be in the past"
	}
	if len(fields) > 0 {
		return errorutil.NewInvalidInput("invalid reservation", fields)
	}
	return nil
}

// translate maps store errors onto the service's error kinds. Errors already
// carrying a kind pass through unchanged.
func (s *ReservationService) translate(err error, reservationID string) error {
	var domainErr *errorutil.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrNotFound):
		return errorutil.NewNotFound("reservation", map[string]any{"reservation_id": reservationID})
	default:
		return fmt.Errorf("reservation %s: %w", reservationID, err)
	}
}

func (s *ReservationService) publishEvent(ctx context.Context, identity domain.Identity, eventType events.EventType, reservationID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ReservationID: reservationID,
		Actor:         events.Actor{SubjectID: identity.SubjectID, Role: identity.Role},
		Timestamp:     s.now().UTC(),
		Payload:       payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Error("publish event failed",
			zap.String("event_type", string(eventType)),
			zap.String("reservation_id", reservationID),
			zap.Error(err))
	}
}

// conflictError reports the overlapping window without exposing who holds it.
func conflictError(key domain.SlotKey, existing *domain.Reservation) error {
	return errorutil.NewConflict("table is already reserved for an overlapping time", map[string]any{
		"table_id":   key.TableID,
		"date":       key.Date.String(),
		"start_time": existing.StartTime.String(),
		"end_time":   existing.EndTime.String(),
	})
}
