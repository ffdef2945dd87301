package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/table-reservation/internal/domain"
)

// MemoryReservationRepository keeps reservations in process memory. It is
// used when no Postgres DSN is configured and in tests. Exclusion scopes are
// keyed locks, so different tables and dates proceed in parallel.
type MemoryReservationRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Reservation
	// retired holds ids of deleted reservations so they are never reused.
	retired map[string]struct{}
	locks   *keyedLock
	now     func() time.Time
}

// NewMemoryReservationRepository returns an empty in-memory store.
func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{
		records: make(map[string]domain.Reservation),
		retired: make(map[string]struct{}),
		locks:   newKeyedLock(),
		now:     time.Now,
	}
}

func (r *MemoryReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(reservation)
}

func (r *MemoryReservationRepository) createLocked(reservation *domain.Reservation) error {
	if reservation.ID == "" {
		return fmt.Errorf("create reservation: empty id")
	}
	if _, exists := r.records[reservation.ID]; exists {
		return fmt.Errorf("create reservation: id %s already exists", reservation.ID)
	}
	if _, used := r.retired[reservation.ID]; used {
		return fmt.Errorf("create reservation: id %s was retired", reservation.ID)
	}
	now := r.now().UTC()
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	reservation.UpdatedAt = reservation.CreatedAt
	r.records[reservation.ID] = *reservation
	return nil
}

func (r *MemoryReservationRepository) Update(ctx context.Context, reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(reservation, r.now().UTC())
}

func (r *MemoryReservationRepository) updateLocked(reservation *domain.Reservation, at time.Time) error {
	existing, ok := r.records[reservation.ID]
	if !ok {
		return ErrNotFound
	}
	updated := *reservation
	updated.OwnerID = existing.OwnerID
	updated.Status = existing.Status
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = at
	r.records[reservation.ID] = updated
	*reservation = updated
	return nil
}

func (r *MemoryReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (r *MemoryReservationRepository) Cancel(ctx context.Context, id string) (*domain.Reservation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if record.Status == domain.ReservationStatusCancelled {
		return &record, false, nil
	}
	record.Status = domain.ReservationStatusCancelled
	record.UpdatedAt = r.now().UTC()
	r.records[id] = record
	return &record, true, nil
}

func (r *MemoryReservationRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	r.retired[id] = struct{}{}
	return nil
}

func (r *MemoryReservationRepository) ListActiveByTableAndDate(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
	return r.filter(func(res domain.Reservation) bool {
		return res.IsActive() && res.TableID == key.TableID && res.Date.Equal(key.Date)
	}), nil
}

func (r *MemoryReservationRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	return r.filter(func(res domain.Reservation) bool {
		return res.OwnerID == ownerID
	}), nil
}

func (r *MemoryReservationRepository) ListAll(ctx context.Context) ([]domain.Reservation, error) {
	return r.filter(func(domain.Reservation) bool { return true }), nil
}

func (r *MemoryReservationRepository) filter(match func(domain.Reservation) bool) []domain.Reservation {
	r.mu.RLock()
	result := make([]domain.Reservation, 0, len(r.records))
	for _, record := range r.records {
		if match(record) {
			result = append(result, record)
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(result)
	return result
}

// WithExclusion holds the keyed lock for key while fn runs. Writes made by fn
// are staged and applied together once fn returns nil.
func (r *MemoryReservationRepository) WithExclusion(ctx context.Context, key domain.SlotKey, fn func(ctx context.Context, repo ReservationRepository) error) error {
	unlock, err := r.locks.Lock(ctx, key.String())
	if err != nil {
		return fmt.Errorf("acquire exclusion %s: %w", key, err)
	}
	defer unlock()

	scope := &memoryScope{parent: r, staged: make(map[string]stagedWrite)}
	if err := fn(ctx, scope); err != nil {
		return err
	}
	return scope.commit()
}

func (r *MemoryReservationRepository) Ping(ctx context.Context) error {
	return nil
}

type stagedWrite struct {
	record domain.Reservation
	create bool
}

// memoryScope is the repository view handed to an exclusion callback.
type memoryScope struct {
	parent *MemoryReservationRepository
	staged map[string]stagedWrite
	order  []string
}

func (s *memoryScope) Create(ctx context.Context, reservation *domain.Reservation) error {
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = s.parent.now().UTC()
	}
	reservation.UpdatedAt = reservation.CreatedAt
	s.stage(*reservation, true)
	return nil
}

func (s *memoryScope) Update(ctx context.Context, reservation *domain.Reservation) error {
	if _, err := s.GetByID(ctx, reservation.ID); err != nil {
		return err
	}
	reservation.UpdatedAt = s.parent.now().UTC()
	s.stage(*reservation, false)
	return nil
}

func (s *memoryScope) stage(record domain.Reservation, create bool) {
	if prev, ok := s.staged[record.ID]; ok {
		create = create || prev.create
	} else {
		s.order = append(s.order, record.ID)
	}
	s.staged[record.ID] = stagedWrite{record: record, create: create}
}

func (s *memoryScope) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	if write, ok := s.staged[id]; ok {
		record := write.record
		return &record, nil
	}
	return s.parent.GetByID(ctx, id)
}

func (s *memoryScope) ListActiveByTableAndDate(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
	committed, err := s.parent.ListActiveByTableAndDate(ctx, key)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Reservation, 0, len(committed)+len(s.staged))
	for _, record := range committed {
		if _, overridden := s.staged[record.ID]; !overridden {
			result = append(result, record)
		}
	}
	for _, write := range s.staged {
		rec := write.record
		if rec.IsActive() && rec.TableID == key.TableID && rec.Date.Equal(key.Date) {
			result = append(result, rec)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (s *memoryScope) Cancel(ctx context.Context, id string) (*domain.Reservation, bool, error) {
	return s.parent.Cancel(ctx, id)
}

func (s *memoryScope) Delete(ctx context.Context, id string) error {
	return s.parent.Delete(ctx, id)
}

func (s *memoryScope) ListByOwner(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	return s.parent.ListByOwner(ctx, ownerID)
}

func (s *memoryScope) ListAll(ctx context.Context) ([]domain.Reservation, error) {
	return s.parent.ListAll(ctx)
}

func (s *memoryScope) Ping(ctx context.Context) error {
	return s.parent.Ping(ctx)
}

func (s *memoryScope) WithExclusion(ctx context.Context, key domain.SlotKey, fn func(ctx context.Context, repo ReservationRepository) error) error {
	return fmt.Errorf("nested exclusion scope for %s is not supported", key)
}

func (s *memoryScope) commit() error {
	if len(s.staged) == 0 {
		return nil
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	for _, id := range s.order {
		write := s.staged[id]
		if write.create {
			if _, exists := s.parent.records[id]; exists {
				return fmt.Errorf("create reservation: id %s already exists", id)
			}
			if _, used := s.parent.retired[id]; used {
				return fmt.Errorf("create reservation: id %s was retired", id)
			}
		} else if _, ok := s.parent.records[id]; !ok {
			return ErrNotFound
		}
	}
	for _, id := range s.order {
		write := s.staged[id]
		if write.create {
			rec := write.record
			if err := s.parent.createLocked(&rec); err != nil {
				return err
			}
			continue
		}
		rec := write.record
		if err := s.parent.updateLocked(&rec, rec.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func sortNewestFirst(records []domain.Reservation) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}
